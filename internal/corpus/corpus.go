package corpus

// Struc is one span of a structural attribute (sentence, text, ...), with
// its ordinal identifier and inclusive corpus-position bounds.
type Struc struct {
	ID         int
	Start      int
	End        int
	Annotation string
}

// Attributes is the read-only lookup interface onto an indexed corpus.
// Implementations resolve positional attributes by corpus position and
// structural attributes by enclosing span.
type Attributes interface {
	// Size returns the corpus size in tokens
	Size() (int, error)

	// Values returns the values of a positional attribute for every
	// position in the inclusive range [start, end]
	Values(attr string, start, end int) ([]string, error)

	// Enclosing returns the span of a structural attribute containing
	// cpos, or ok=false when no span contains it
	Enclosing(attr string, cpos int) (Struc, bool, error)

	// Frequency returns the corpus-wide frequency of one value of a
	// positional attribute
	Frequency(attr, value string) (int, error)
}
