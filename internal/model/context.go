package model

// Context is the open enrichment bag attached to a record: title,
// description, author, thumbnail, source url and per-source fields.
type Context map[string]interface{}

// Merge shallow-merges incoming over existing at the top level. Incoming wins
// on conflict; existing keys absent from incoming are preserved. Re-enrichment
// therefore updates per-field, never wholesale-replaces.
func (c Context) Merge(incoming Context) Context {
	if len(incoming) == 0 {
		return c
	}
	out := make(Context, len(c)+len(incoming))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

func (c Context) String(key string) string {
	if c == nil {
		return ""
	}
	value, _ := c[key].(string)
	return value
}
