// AngelaMos | 2026
// body.go

package core

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxMultipartMemory = 8 << 20

// DecodeBody fills dst from a JSON, multipart or urlencoded request body.
// Fields already present in dst are kept unless the body overrides them,
// so decoding onto a loaded document acts as a partial update.
func DecodeBody(r *http.Request, dst any) error {
	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return ValidationError("invalid Content-Type header")
		}
		mediaType = parsed
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(MaxMultipartMemory); err != nil {
			return fmt.Errorf("parse multipart form: %w", err)
		}
		return DecodeMap(formMap(r), dst)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("parse form: %w", err)
		}
		return DecodeMap(formMap(r), dst)
	default:
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return err
		}
		if uploads := UploadsFromContext(r.Context()); len(uploads) > 0 {
			return DecodeMap(toAnyMap(uploads), dst)
		}
		return nil
	}
}

// DecodeMap decodes loosely typed form values into dst using JSON field
// names.
func DecodeMap(values map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           dst,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			stringToObjectIDHook,
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}

	if err := dec.Decode(values); err != nil {
		return ValidationError(fmt.Sprintf("Invalid input data. %v", err))
	}

	return nil
}

func formMap(r *http.Request) map[string]any {
	values := make(map[string]any, len(r.PostForm))
	for key, vals := range r.PostForm {
		switch len(vals) {
		case 0:
		case 1:
			values[key] = vals[0]
		default:
			values[key] = vals
		}
	}

	for field, publicID := range UploadsFromContext(r.Context()) {
		values[field] = publicID
	}

	return values
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var objectIDType = reflect.TypeOf(primitive.ObjectID{})

func stringToObjectIDHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != objectIDType {
		return data, nil
	}

	hex := reflect.ValueOf(data).String()
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q", hex)
	}
	return id, nil
}
