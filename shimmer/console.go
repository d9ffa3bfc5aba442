package shimmer

import (
	"github.com/relabs-tech/shimmer-console/core/client"
	"github.com/relabs-tech/shimmer-console/core/export"
)

// Options configures a Console. All fields are optional.
type Options struct {
	// Endpoints defaults to DefaultEndpointTable
	Endpoints *EndpointTable
	// Opener shows authorization windows. Without opener, Connect fails.
	Opener     WindowOpener
	Authorizer []AuthorizerOption
	Charter    Charter
	Exporter   export.Driver
}

// Console wires all controllers of the console to one shim server
type Console struct {
	Resources  *Resources
	Endpoints  *EndpointTable
	Registry   *Registry
	Selector   *Selector
	Authorizer *Authorizer
	URLs       *URLBuilder
	Requests   *RequestBuilder
}

// NewConsole returns a Console for the shim server reached by cl
func NewConsole(cl client.Client, options Options) *Console {
	endpoints := options.Endpoints
	if endpoints == nil {
		endpoints = DefaultEndpointTable()
	}
	opener := options.Opener
	if opener == nil {
		opener = noOpener{}
	}
	resources := NewResources(cl)
	registry := NewRegistry(resources, endpoints)
	selector := NewSelector(resources, registry)
	urls := NewURLBuilder(resources.APIURL(), endpoints)

	var requestOptions []RequestBuilderOption
	if options.Charter != nil {
		requestOptions = append(requestOptions, WithCharter(options.Charter))
	}
	if options.Exporter != nil {
		requestOptions = append(requestOptions, WithExporter(options.Exporter))
	}

	return &Console{
		Resources:  resources,
		Endpoints:  endpoints,
		Registry:   registry,
		Selector:   selector,
		Authorizer: NewAuthorizer(resources, opener, options.Authorizer...),
		URLs:       urls,
		Requests:   NewRequestBuilder(resources, selector, urls, requestOptions...),
	}
}

// Close stops all pending authorizations
func (c *Console) Close() {
	c.Authorizer.Close()
}
