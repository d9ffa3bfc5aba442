package shimmer

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/shimmer-console/core/export"
)

// Date types a data request can filter on
const (
	DateTypeEffectiveTimeframe = "effective_timeframe"
	DateTypeCreationDate       = "creation_date"
)

// DateTypes lists all valid date types
var DateTypes = []string{DateTypeEffectiveTimeframe, DateTypeCreationDate}

// DateFormat is the format of dateStart and dateEnd
const DateFormat = "2006-01-02"

// RequestParameters are the constituents of a data request. Zero dates are defaulted
// when the URL is built.
type RequestParameters struct {
	Shim      string
	Schema    *Schema
	DateType  string
	StartDate time.Time
	EndDate   time.Time
	URL       string
}

// URLBuilder builds data request URLs
type URLBuilder struct {
	apiURL    string
	endpoints *EndpointTable
	now       func() time.Time
}

// NewURLBuilder returns a URLBuilder for the shim server at apiURL
func NewURLBuilder(apiURL string, endpoints *EndpointTable) *URLBuilder {
	return &URLBuilder{
		apiURL:    strings.TrimSuffix(apiURL, "/"),
		endpoints: endpoints,
		now:       time.Now,
	}
}

// DefaultDates returns the default date range, from two days ago until tomorrow
func (b *URLBuilder) DefaultDates() (time.Time, time.Time) {
	today := b.now()
	return today.AddDate(0, 0, -2), today.AddDate(0, 0, 1)
}

// BuildURL returns the data URL for user and params
func (b *URLBuilder) BuildURL(user User, params RequestParameters, normalize bool) (string, error) {
	if params.Schema == nil {
		return "", fmt.Errorf("%w: schema missing", ErrIncompleteParameters)
	}
	shim := strings.ToLower(params.Shim)
	endpoint, ok := b.endpoints.Endpoint(shim, params.Schema.Key())
	if !ok {
		return "", fmt.Errorf("%w %s of shim %s", ErrUnknownEndpoint, params.Schema.Key(), shim)
	}
	start, end := b.dates(params)
	query := strings.Join([]string{
		"username=" + url.QueryEscape(user.ID),
		"dateStart=" + start.Format(DateFormat),
		"dateEnd=" + end.Format(DateFormat),
		"normalize=" + strconv.FormatBool(normalize),
	}, "&")
	return b.apiURL + "/data/" + url.PathEscape(shim) + "/" + url.PathEscape(endpoint) + "?" + query, nil
}

func (b *URLBuilder) dates(params RequestParameters) (time.Time, time.Time) {
	defaultStart, defaultEnd := b.DefaultDates()
	start, end := params.StartDate, params.EndDate
	if start.IsZero() {
		start = defaultStart
	}
	if end.IsZero() {
		end = defaultEnd
	}
	return start, end
}

// RequestBuilder holds the parameters of the next data request. The URL is rebuilt from
// the selected user and the parameters before it is read, so default dates follow the clock.
type RequestBuilder struct {
	urls      *URLBuilder
	resources *Resources
	charter   Charter
	exporter  export.Driver

	mu        sync.Mutex
	user      *User
	params    RequestParameters
	normalize bool
}

// RequestBuilderOption configures a RequestBuilder
type RequestBuilderOption func(*RequestBuilder)

// WithCharter sets the charter results are rendered with
func WithCharter(c Charter) RequestBuilderOption {
	return func(b *RequestBuilder) {
		b.charter = c
	}
}

// WithExporter sets the driver successful payloads are exported with
func WithExporter(d export.Driver) RequestBuilderOption {
	return func(b *RequestBuilder) {
		b.exporter = d
	}
}

// NewRequestBuilder returns a RequestBuilder which follows the selection of selector
func NewRequestBuilder(resources *Resources, selector *Selector, urls *URLBuilder, options ...RequestBuilderOption) *RequestBuilder {
	b := &RequestBuilder{
		urls:      urls,
		resources: resources,
		normalize: true,
		params:    RequestParameters{DateType: DateTypeEffectiveTimeframe},
	}
	for _, option := range options {
		option(b)
	}
	if user, ok := selector.Selected(); ok {
		b.userChanged(user)
	}
	selector.OnSelect(b.userChanged)
	return b
}

func (b *RequestBuilder) userChanged(user User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.user = &user
	b.params.Shim = ""
	if len(user.Authorizations) > 0 {
		b.params.Shim = user.Authorizations[0]
	}
}

// SetShim sets the shim of the request
func (b *RequestBuilder) SetShim(shim string) {
	b.update(func(p *RequestParameters) { p.Shim = shim })
}

// SetSchema sets the schema of the request
func (b *RequestBuilder) SetSchema(schema Schema) {
	b.update(func(p *RequestParameters) { p.Schema = &schema })
}

// SetDateType sets the date type of the request
func (b *RequestBuilder) SetDateType(dateType string) error {
	for _, t := range DateTypes {
		if t == dateType {
			b.update(func(p *RequestParameters) { p.DateType = dateType })
			return nil
		}
	}
	return fmt.Errorf("invalid date type %q, must be one of %s", dateType, strings.Join(DateTypes, ", "))
}

// SetStartDate sets the first day of the request. The zero time selects the default.
func (b *RequestBuilder) SetStartDate(t time.Time) {
	b.update(func(p *RequestParameters) { p.StartDate = t })
}

// SetEndDate sets the last day of the request. The zero time selects the default.
func (b *RequestBuilder) SetEndDate(t time.Time) {
	b.update(func(p *RequestParameters) { p.EndDate = t })
}

// SetNormalize selects normalized (omh) or raw shim data
func (b *RequestBuilder) SetNormalize(normalize bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.normalize = normalize
}

func (b *RequestBuilder) update(f func(p *RequestParameters)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(&b.params)
}

// build builds the URL once all constituents are known. Must be called with the lock held.
func (b *RequestBuilder) build() (RequestParameters, error) {
	p := b.params
	p.URL = ""
	if p.Schema != nil {
		schema := *p.Schema
		p.Schema = &schema
	}
	if b.user == nil || p.Shim == "" || p.Schema == nil || p.DateType == "" {
		return p, ErrIncompleteParameters
	}
	u, err := b.urls.BuildURL(*b.user, p, b.normalize)
	if err != nil {
		return p, err
	}
	p.URL = u
	return p, nil
}

// Parameters returns the current parameters with an up to date URL. The error tells why
// no URL could be built.
func (b *RequestBuilder) Parameters() (RequestParameters, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.build()
}
