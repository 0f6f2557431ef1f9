package migrate

import "fmt"

// Stage is how far a record got through conversion.
type Stage int

const (
	// Pending means nothing has been read yet.
	Pending Stage = iota
	// Fetched means the stored payload was read.
	Fetched
	// Decoded means the legacy token verified and decrypted.
	Decoded
	// Encrypted means the unified payload was produced.
	Encrypted
	// Persisted means the record was replaced. This is the only successful end state.
	Persisted
	// Failed means conversion stopped; Result.Err says why and the record is untouched.
	Failed
)

func (s Stage) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fetched:
		return "fetched"
	case Decoded:
		return "decoded"
	case Encrypted:
		return "encrypted"
	case Persisted:
		return "persisted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Result represents the outcome of converting a single record.
type Result struct {
	// Record id
	RecordID string

	// Filename of the record, for reporting
	Filename string

	// Stage reached; Persisted on success
	Stage Stage

	// LastStage is the stage completed before a failure
	LastStage Stage

	// Stored size before conversion
	InputSize int64

	// Plaintext size
	PlainSize int64

	// Stored size after conversion
	OutputSize int64

	// Chunks in the unified payload
	Chunks int

	// Any error that occurred during conversion
	Err error
}

// Success reports whether the record was persisted in the unified format.
func (r Result) Success() bool {
	return r.Stage == Persisted && r.Err == nil
}
