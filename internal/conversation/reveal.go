package conversation

import (
	"context"
	"unicode"
	"unicode/utf8"
)

// Reveal discloses fullText one word at a time. Each update is the prefix of fullText
// through the next word, so line breaks survive, and the last update is fullText itself.
// It sleeps between consecutive updates only and stops with ctx.Err() once ctx is done.
func Reveal(ctx context.Context, fullText string, delay DelayFunc, sleep SleepFunc, onUpdate func(partial string)) error {
	if delay == nil {
		delay = FixedDelay(0)
	}
	if sleep == nil {
		sleep = Sleep
	}
	ends := wordEnds(fullText)
	for i, end := range ends {
		if i > 0 {
			if err := sleep(ctx, delay()); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == len(ends)-1 {
			end = len(fullText)
		}
		onUpdate(fullText[:end])
	}
	return nil
}

// WordCount is the number of updates Reveal emits for text.
func WordCount(text string) int {
	return len(wordEnds(text))
}

// wordEnds returns the byte offset just past each whitespace-separated word.
func wordEnds(s string) []int {
	var ends []int
	inWord := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) {
			if inWord {
				ends = append(ends, i)
				inWord = false
			}
		} else {
			inWord = true
		}
		i += size
	}
	if inWord {
		ends = append(ends, len(s))
	}
	return ends
}
