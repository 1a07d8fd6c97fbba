package model

// All lists every table for schema migration.
func All() []any {
	return []any{
		&RFQ{},
		&RFQItem{},
		&SourceFile{},
		&RFQSupplier{},
		&GenerationLock{},
	}
}
