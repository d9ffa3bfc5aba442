package shimmer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/shimmer-console/core/logger"
)

// Result is the outcome of a successful data request
type Result struct {
	URL string
	// Raw is the payload as received
	Raw []byte
	// Text is the payload indented with tabs, without groupName keys
	Text string
	// ExportLocation is where the payload has been exported, if at all
	ExportLocation string
}

// Execute fetches the data for the current parameters. The body of the payload is charted
// and the payload is exported if a charter or exporter is configured. A failed request
// returns an *InlineError.
func (b *RequestBuilder) Execute(ctx context.Context) (*Result, error) {
	b.mu.Lock()
	params, err := b.build()
	var user User
	if b.user != nil {
		user = *b.user
	}
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ctx, rlog := logger.ContextWithLoggerIdentity(ctx, user.ID)

	raw, err := b.resources.FetchData(ctx, params.URL)
	if err != nil {
		status := 0
		var networkErr *NetworkError
		if errors.As(err, &networkErr) {
			status = networkErr.Status()
		}
		return nil, &InlineError{Status: status, Err: err}
	}

	result := &Result{URL: params.URL, Raw: raw}
	result.Text, err = FormatResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("cannot read data response: %w", err)
	}

	if b.charter != nil {
		var payload struct {
			Body json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Body) > 0 {
			if err := b.charter.Render(ctx, payload.Body, MeasureName(*params.Schema), DefaultChartOptions()); err != nil {
				rlog.WithError(err).Warnln("cannot render chart")
			}
		}
	}

	if b.exporter != nil {
		endpoint, _ := b.urls.endpoints.Endpoint(params.Shim, params.Schema.Key())
		start, end := b.urls.dates(params)
		key := ExportKey(user, strings.ToLower(params.Shim), endpoint, start.Format(DateFormat), end.Format(DateFormat))
		if err := b.exporter.Put(ctx, key, raw); err != nil {
			rlog.WithError(err).Errorln("cannot export", key)
		} else {
			result.ExportLocation = b.exporter.Location(key)
		}
	}
	return result, nil
}

// FormatResponse indents a JSON payload with tabs and removes all groupName keys. Keys keep
// the order of the payload.
func FormatResponse(raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}
	if !json.Valid(raw) {
		return "", errors.New("invalid JSON payload")
	}
	f := &responseFormatter{skipKey: "groupName", decoder: json.NewDecoder(bytes.NewReader(raw))}
	f.decoder.UseNumber()
	if err := f.next(0); err != nil {
		return "", err
	}
	return f.out.String(), nil
}

// responseFormatter walks the tokens of a valid JSON document and writes them indented
type responseFormatter struct {
	decoder *json.Decoder
	skipKey string
	out     bytes.Buffer
}

func (f *responseFormatter) next(depth int) error {
	token, err := f.decoder.Token()
	if err != nil {
		return err
	}
	return f.value(token, depth)
}

func (f *responseFormatter) value(token json.Token, depth int) error {
	switch t := token.(type) {
	case json.Delim:
		switch t {
		case '{':
			return f.object(depth)
		case '[':
			return f.array(depth)
		}
		return fmt.Errorf("unexpected %v", t)
	case string:
		return f.str(t)
	case json.Number:
		f.out.WriteString(t.String())
	case float64:
		f.out.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case bool:
		f.out.WriteString(strconv.FormatBool(t))
	case nil:
		f.out.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %v", t)
	}
	return nil
}

func (f *responseFormatter) object(depth int) error {
	f.out.WriteByte('{')
	members := 0
	for {
		token, err := f.decoder.Token()
		if err != nil {
			return err
		}
		if token == json.Delim('}') {
			break
		}
		key, ok := token.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", token)
		}
		if key == f.skipKey {
			if err := f.skip(); err != nil {
				return err
			}
			continue
		}
		if members > 0 {
			f.out.WriteByte(',')
		}
		members++
		f.newline(depth + 1)
		if err := f.str(key); err != nil {
			return err
		}
		f.out.WriteString(": ")
		if err := f.next(depth + 1); err != nil {
			return err
		}
	}
	if members > 0 {
		f.newline(depth)
	}
	f.out.WriteByte('}')
	return nil
}

func (f *responseFormatter) array(depth int) error {
	f.out.WriteByte('[')
	elements := 0
	for {
		token, err := f.decoder.Token()
		if err != nil {
			return err
		}
		if token == json.Delim(']') {
			break
		}
		if elements > 0 {
			f.out.WriteByte(',')
		}
		elements++
		f.newline(depth + 1)
		if err := f.value(token, depth+1); err != nil {
			return err
		}
	}
	if elements > 0 {
		f.newline(depth)
	}
	f.out.WriteByte(']')
	return nil
}

// skip consumes the next value
func (f *responseFormatter) skip() error {
	open := 0
	for {
		token, err := f.decoder.Token()
		if err != nil {
			return err
		}
		switch token {
		case json.Delim('{'), json.Delim('['):
			open++
		case json.Delim('}'), json.Delim(']'):
			open--
		}
		if open == 0 {
			return nil
		}
	}
}

func (f *responseFormatter) str(s string) error {
	quoted, err := json.MarshalWithOption(s, json.DisableHTMLEscape())
	if err != nil {
		return err
	}
	f.out.Write(quoted)
	return nil
}

func (f *responseFormatter) newline(depth int) {
	f.out.WriteByte('\n')
	f.out.WriteString(strings.Repeat("\t", depth))
}

var nonWord = regexp.MustCompile(`\W+`)

// HTMLID replaces all runs of non word characters in s by an underscore
func HTMLID(s string) string {
	return nonWord.ReplaceAllString(s, "_")
}

// ExportKey returns the key a payload is exported under
func ExportKey(user User, shim, endpoint, start, end string) string {
	return strings.Join([]string{HTMLID(user.ID), shim, endpoint, start + "_" + end}, "-") + ".json"
}
