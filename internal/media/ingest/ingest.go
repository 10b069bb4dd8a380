package ingest

import (
	"context"
	"log/slog"

	"github.com/slopify/slopify/packages/cli/internal/util"
)

// MsgConversionFailedPrefix precedes the transcoder's error when a fallback fails.
const MsgConversionFailedPrefix = "Conversion was attempted but failed: "

// Result is the outcome of Ingest. File is what callers should process: the
// original, or the converted copy when Transcoded is set.
type Result struct {
	File       *File
	Validation ValidationResult
	Transcoded bool
	Outcome    *TranscodeOutcome
	// ConversionError is set when the fallback conversion failed; Validation
	// still holds the original error.
	ConversionError string
}

// OK reports whether File can be processed.
func (r Result) OK() bool { return r.Validation.Valid }

// Ingester validates files and converts the ones the decoder cannot read.
type Ingester struct {
	Validator  *Validator
	Checker    *DecodeChecker
	Transcoder *Transcoder
	Config     TranscodeConfig
	Logger     *slog.Logger
}

// NewIngester wires the validator, checker and transcoder.
func NewIngester(v *Validator, c *DecodeChecker, t *Transcoder, logger *slog.Logger) *Ingester {
	return &Ingester{
		Validator:  v,
		Checker:    c,
		Transcoder: t,
		Config:     DefaultTranscodeConfig(),
		Logger:     util.ComponentLogger(logger, "ingest"),
	}
}

// Ingest validates f. A format failure on an accepted MIME type that the
// decoder cannot read triggers a conversion and a second validation.
func (in *Ingester) Ingest(ctx context.Context, f *File, onProgress func(TranscodeProgress)) Result {
	res := Result{File: f, Validation: in.Validator.Validate(ctx, f)}
	if res.Validation.Valid {
		return res
	}
	verr := res.Validation.Error
	if verr.Kind != KindFormat || !IsAllowedMIMEType(f.MIMEType) || in.Transcoder == nil {
		return res
	}
	if in.Checker != nil && !in.Checker.NeedsTranscoding(ctx, f) {
		return res
	}

	in.Logger.Info("Converting file the decoder cannot read", "file", f.Name)
	outcome := in.Transcoder.TranscodeVideo(ctx, f, in.Config, onProgress)
	res.Outcome = &outcome
	if !outcome.Success {
		res.ConversionError = MsgConversionFailedPrefix + outcome.Error
		return res
	}

	converted := in.Validator.Validate(ctx, outcome.File)
	if !converted.Valid {
		res.ConversionError = MsgConversionFailedPrefix + converted.Error.Message
		return res
	}
	res.File = outcome.File
	res.Validation = converted
	res.Transcoded = true
	return res
}
