package core

import (
	"errors"
	"fmt"
)

// ErrNoSpeech marks a transcription that decoded successfully but produced
// no text. Callers can branch on it with errors.Is to distinguish silence
// from a hard failure.
var ErrNoSpeech = errors.New("no speech detected")

// MediaDecodeError reports bad or undecodable input media, including a
// failed or empty ffmpeg extraction.
type MediaDecodeError struct {
	Reason string
	Err    error
}

func (e *MediaDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media decode: %s: %v", e.Reason, e.Err)
	}
	return "media decode: " + e.Reason
}

func (e *MediaDecodeError) Unwrap() error { return e.Err }

// TranscriptionError reports that the speech-recognition boundary could not
// produce a usable transcript.
type TranscriptionError struct {
	Reason string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcription: %s: %v", e.Reason, e.Err)
	}
	return "transcription: " + e.Reason
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// IndexWriteError reports a rejected or incomplete index write. Written
// carries how many chunks made it in before the failure; backends with
// transactional writes always report zero.
type IndexWriteError struct {
	Written int
	Err     error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write: %d chunks written before failure: %v", e.Written, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

// RetrievalError reports an empty or unreachable index at query time.
type RetrievalError struct {
	Reason string
	Err    error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retrieval: %s: %v", e.Reason, e.Err)
	}
	return "retrieval: " + e.Reason
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError reports a failed or unusable language-model completion.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation: %s: %v", e.Reason, e.Err)
	}
	return "generation: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }
