package cli

import "errors"

// Ошибки команд.
var (
	// ErrEvalFailed — проход завершился с ошибками блоков или топологии.
	ErrEvalFailed = errors.New("evaluation failed")

	// ErrInvalidDocumentID — аргумент не является UUID документа.
	ErrInvalidDocumentID = errors.New("invalid document id")
)
