/*
Package shimmer is the administrative console for a shim server.

A shim is an adapter representing one external data-source integration, for example
fitbit or withings. The shim server exposes a small REST API (registry, authorizations,
configuration, schemas and data) and this package keeps a client side view of it in sync:

	cl := client.NewWithURL("http://localhost:8083")
	console := shimmer.NewConsole(cl, shimmer.Options{})
	defer console.Close()
	console.Registry.Refresh(ctx)

	users, _ := console.Selector.Search(ctx, "ann")
	console.Selector.Select(ctx, users[0])

	console.Requests.SetShim("fitbit")
	console.Requests.SetSchema(shimmer.Schema{Namespace: "omh", Name: "step-count", Version: "1.0"})
	console.Requests.SetDateType(shimmer.DateTypeEffectiveTimeframe)
	result, err := console.Requests.Execute(ctx)

Registry

The Registry is the single owned cache of all known shims. It is shared by reference
between all consumers, and it is only ever mutated by its refresh operations. Each refresh
prunes shims the server no longer reports, creates empty entries for new shims and then
merges the fetched property into every entry.

Overlapping refreshes are not sequenced: the response that completes last wins.

Authorization

The Authorizer asks the server for an authorization URL, shows it in a window through a
WindowOpener and polls the window until it has been closed. The BrowserOpener shows the
URL in the system browser and considers the window closed once the shim server redirected
the browser back to the CallbackListener.
*/
package shimmer
