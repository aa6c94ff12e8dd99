package column

// FlattenTopLevel flattens the root column into its positional fields: a
// top-level struct flattens to its own fields in declared order; any other
// top-level column flattens to a single synthetic "value" field. This is
// what turns a schema's root column into the INSERT's positional column
// list.
func FlattenTopLevel(c *Column) []Field {
	if c.kind == KindStruct {
		return append([]Field(nil), c.fields...)
	}
	return []Field{{Name: "value", Column: c}}
}
