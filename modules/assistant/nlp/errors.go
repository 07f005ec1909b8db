package nlp

import "github.com/flotatrack/fleet-assistant/pkg/serrors"

var (
	ErrEmptyCorpus = serrors.NewError("NLP_EMPTY_CORPUS", "training corpus has no examples", "")
)
