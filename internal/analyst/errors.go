package analyst

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/report-analyst/internal/resilience"
)

// MaxUploadBytes is the default upload size limit.
const MaxUploadBytes = 10 << 20

var (
	// ErrNoReadableText means every page of the document was blank or unreadable.
	ErrNoReadableText = eris.New("no readable text in document")
	// ErrRefinementRejected means refine instructions were empty.
	ErrRefinementRejected = eris.New("refinement instructions are empty")
	// ErrUnknownVersion means a refine request named a version not in history.
	ErrUnknownVersion = eris.New("unknown analysis version")
	// ErrInvalidState means the operation is not allowed in the session's state.
	ErrInvalidState = eris.New("operation not allowed in current state")
	// ErrUploadTooLarge means the upload exceeds MaxUploadBytes.
	ErrUploadTooLarge = eris.New("upload exceeds size limit")
	// ErrUploadNotPDF means the upload does not have a .pdf extension.
	ErrUploadNotPDF = eris.New("upload is not a PDF")
)

// ExtractionEmptyError is returned when neither the structured parse nor
// the pattern fallback found any metric. Raw is the completion text.
type ExtractionEmptyError struct {
	Raw string
}

func (e *ExtractionEmptyError) Error() string {
	return "no metrics could be extracted from the completion"
}

// FailureKind is the outcome class callers branch on.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureInput covers unusable input: no readable text, empty refine
	// instructions, an unknown version, or a rejected upload.
	FailureInput
	// FailureTransient means the service kept failing after all retries.
	FailureTransient
	// FailurePermanent means the service rejected the request outright.
	FailurePermanent
	// FailureDataShape means the completion held no recoverable metrics.
	FailureDataShape
	// FailureState means the operation was called out of order.
	FailureState
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInput:
		return "input"
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	case FailureDataShape:
		return "data_shape"
	case FailureState:
		return "state"
	default:
		return "unknown"
	}
}

// KindOf classifies err.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var empty *ExtractionEmptyError
	switch {
	case errors.As(err, &empty):
		return FailureDataShape
	case errors.Is(err, ErrNoReadableText),
		errors.Is(err, ErrRefinementRejected),
		errors.Is(err, ErrUnknownVersion),
		errors.Is(err, ErrUploadTooLarge),
		errors.Is(err, ErrUploadNotPDF):
		return FailureInput
	case errors.Is(err, ErrInvalidState):
		return FailureState
	case errors.Is(err, resilience.ErrExhaustedRetries):
		return FailureTransient
	}

	switch resilience.Classify(err) {
	case resilience.ClassPermanent:
		return FailurePermanent
	default:
		return FailureTransient
	}
}

// ValidateUpload checks the upload precondition: a .pdf name no larger than
// limit bytes. A non-positive limit means MaxUploadBytes.
func ValidateUpload(name string, size, limit int64) error {
	if limit <= 0 {
		limit = MaxUploadBytes
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return eris.Wrapf(ErrUploadNotPDF, "analyst: %q", name)
	}
	if size > limit {
		return eris.Wrapf(ErrUploadTooLarge, "analyst: %d bytes", size)
	}
	return nil
}
