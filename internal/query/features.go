// AngelaMos | 2026
// features.go

package query

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/carterperez-dev/templates/events-api/internal/core"
)

const (
	DefaultPage      = 1
	DefaultLimit     = 100
	MaxLimit         = 1000
	VersionField     = "__v"
	IDField          = "_id"
	URLField         = "url"
	CreatedAtField   = "createdAt"
	paramPage        = "page"
	paramSort        = "sort"
	paramLimit       = "limit"
	paramFields      = "fields"
	descendingPrefix = "-"
)

var reservedParams = map[string]struct{}{
	paramPage:   {},
	paramSort:   {},
	paramLimit:  {},
	paramFields: {},
}

var comparisonOperators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

var operatorKey = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)\[([A-Za-z]+)\]$`)

// Kind is the stored type of a filterable field. Query-string values are
// coerced to it before they reach the store.
type Kind uint8

const (
	String Kind = iota
	Number
	Date
	Bool
	ObjectID
)

// Schema lists the fields of a collection that may appear in filters,
// sorts and projections.
type Schema map[string]Kind

func (s Schema) Has(field string) bool {
	_, ok := s[field]
	return ok
}

// Features applies the query-string stages to a collection query in the
// order filter, sort, field selection, pagination, population. The first
// stage that fails records the error; later stages become no-ops.
type Features struct {
	params Params
	schema Schema
	base   bson.M
	query  *Query
	err    error
}

// Params is the parsed query string. url.Values satisfies it.
type Params = map[string][]string

// New starts a query over params. base is always applied; client filters
// can narrow it but never replace it.
func New(base bson.M, params Params, schema Schema) *Features {
	return &Features{
		params: params,
		schema: schema,
		base:   base,
		query: &Query{
			Filter:     bson.M{},
			Sort:       bson.D{{Key: CreatedAtField, Value: -1}, {Key: IDField, Value: -1}},
			Projection: bson.D{{Key: VersionField, Value: 0}},
			Page:       DefaultPage,
			Limit:      DefaultLimit,
		},
	}
}

// Build runs every stage with the given populate paths.
func Build(params Params, schema Schema, populate ...string) (*Query, error) {
	return New(nil, params, schema).
		Filter().
		Sort().
		LimitFields().
		Paginate().
		Populate(populate...).
		Query()
}

func (f *Features) Filter() *Features {
	if f.err != nil {
		return f
	}

	keys := make([]string, 0, len(f.params))
	for k := range f.params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if _, ok := reservedParams[key]; ok {
			continue
		}

		values := f.params[key]
		if len(values) == 0 {
			continue
		}

		field, op := key, ""
		if m := operatorKey.FindStringSubmatch(key); m != nil {
			field, op = m[1], m[2]
		}

		kind, ok := f.schema[field]
		if !ok {
			continue
		}

		if err := f.applyCondition(field, op, kind, values); err != nil {
			f.err = err
			return f
		}
	}

	return f
}

func (f *Features) applyCondition(field, op string, kind Kind, values []string) error {
	if op != "" {
		mongoOp, ok := comparisonOperators[op]
		if !ok {
			return core.ValidationError(
				fmt.Sprintf("Unsupported filter operator %q on %s", op, field),
			)
		}

		v, err := coerce(field, kind, values[len(values)-1])
		if err != nil {
			return err
		}

		f.condition(field)[mongoOp] = v
		return nil
	}

	coerced := make([]any, 0, len(values))
	for _, raw := range values {
		v, err := coerce(field, kind, raw)
		if err != nil {
			return err
		}
		coerced = append(coerced, v)
	}

	var eq any = coerced[0]
	if len(coerced) > 1 {
		eq = bson.M{"$in": coerced}
	}

	if existing, ok := f.query.Filter[field].(bson.M); ok {
		if in, isIn := eq.(bson.M); isIn {
			existing["$in"] = in["$in"]
		} else {
			existing["$eq"] = eq
		}
		return nil
	}

	f.query.Filter[field] = eq
	return nil
}

func (f *Features) condition(field string) bson.M {
	switch existing := f.query.Filter[field].(type) {
	case bson.M:
		return existing
	case nil:
	default:
		cond := bson.M{"$eq": existing}
		f.query.Filter[field] = cond
		return cond
	}

	cond := bson.M{}
	f.query.Filter[field] = cond
	return cond
}

func (f *Features) Sort() *Features {
	if f.err != nil {
		return f
	}

	raw := last(f.params[paramSort])
	if raw == "" {
		return f
	}

	sort := bson.D{}
	seen := make(map[string]struct{})
	hasID := false

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if strings.HasPrefix(part, descendingPrefix) {
			dir = -1
			part = strings.TrimPrefix(part, descendingPrefix)
		}

		if part == "" || !f.schema.Has(part) {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}

		if part == IDField {
			hasID = true
		}
		sort = append(sort, bson.E{Key: part, Value: dir})
	}

	if len(sort) == 0 {
		return f
	}

	if !hasID {
		sort = append(sort, bson.E{Key: IDField, Value: sort[0].Value})
	}

	f.query.Sort = sort
	return f
}

func (f *Features) LimitFields() *Features {
	if f.err != nil {
		return f
	}

	raw := last(f.params[paramFields])
	if raw == "" {
		return f
	}

	var include, exclude []string
	excludeID := false

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		negated := strings.HasPrefix(part, descendingPrefix)
		name := strings.TrimPrefix(part, descendingPrefix)

		if name == "" || !f.schema.Has(name) {
			continue
		}

		switch {
		case negated && name == IDField:
			excludeID = true
		case negated:
			exclude = appendUnique(exclude, name)
		default:
			include = appendUnique(include, name)
		}
	}

	if len(include) > 0 && len(exclude) > 0 {
		f.err = core.ValidationError(
			"Cannot mix field inclusion and exclusion in fields",
		)
		return f
	}

	projection := bson.D{}
	switch {
	case len(include) > 0:
		for _, name := range include {
			projection = append(projection, bson.E{Key: name, Value: 1})
		}
		if excludeID {
			projection = append(projection, bson.E{Key: IDField, Value: 0})
		}
		f.query.selection = &selection{include: true, fields: include, dropID: excludeID}
	case len(exclude) > 0 || excludeID:
		if excludeID {
			exclude = append(exclude, IDField)
		}
		for _, name := range exclude {
			projection = append(projection, bson.E{Key: name, Value: 0})
		}
		projection = append(projection, bson.E{Key: VersionField, Value: 0})
		f.query.selection = &selection{include: false, fields: exclude, dropID: excludeID}
	default:
		return f
	}

	f.query.Projection = projection
	return f
}

func (f *Features) Paginate() *Features {
	if f.err != nil {
		return f
	}

	page, err := positiveInt(paramPage, last(f.params[paramPage]), DefaultPage)
	if err != nil {
		f.err = err
		return f
	}

	limit, err := positiveInt(paramLimit, last(f.params[paramLimit]), DefaultLimit)
	if err != nil {
		f.err = err
		return f
	}

	if limit > MaxLimit {
		f.err = core.ValidationError(
			fmt.Sprintf("limit must not exceed %d", MaxLimit),
		)
		return f
	}

	if page > math.MaxInt64/limit {
		f.err = core.ValidationError("page is out of range")
		return f
	}

	f.query.Page = page
	f.query.Limit = limit
	f.query.Skip = (page - 1) * limit
	return f
}

func (f *Features) Populate(paths ...string) *Features {
	if f.err != nil || len(paths) == 0 {
		return f
	}

	f.query.Populate = append(f.query.Populate[:0:0], paths...)
	return f
}

func (f *Features) Query() (*Query, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.base) > 0 {
		f.query.Filter = withBase(f.query.Filter, f.base)
		f.base = nil
	}
	return f.query, nil
}

// withBase merges base into filter. A field constrained by both sides is
// moved into $and so each condition holds.
func withBase(filter, base bson.M) bson.M {
	out := make(bson.M, len(filter)+len(base))
	for k, v := range filter {
		out[k] = v
	}

	var both []bson.M
	for k, v := range base {
		if existing, ok := out[k]; ok {
			both = append(both, bson.M{k: v}, bson.M{k: existing})
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(both) > 0 {
		out["$and"] = both
	}
	return out
}

func positiveInt(name, raw string, def int64) (int64, error) {
	if raw == "" {
		return def, nil
	}

	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 1 {
		return 0, core.ValidationError(
			fmt.Sprintf("%s must be a positive integer, got %q", name, raw),
		)
	}

	return n, nil
}

func coerce(field string, kind Kind, raw string) (any, error) {
	invalid := func() error {
		return core.ValidationError(fmt.Sprintf("Invalid %s: %s", field, raw))
	}

	switch kind {
	case Number:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, invalid()
		}
		return n, nil
	case Date:
		for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return t, nil
			}
		}
		return nil, invalid()
	case Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, invalid()
		}
		return b, nil
	case ObjectID:
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
		if err != nil {
			return nil, invalid()
		}
		return id, nil
	default:
		return raw, nil
	}
}

func last(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
