package telegram

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/liteclaw/abstractbot/internal/bot"
)

const progressCells = 20

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func progressText(text string, fraction float64) string {
	fraction = math.Max(0, math.Min(1, fraction))
	done := int(math.Round(fraction * progressCells))
	return fmt.Sprintf("%s [%s%s] %d%%",
		text,
		strings.Repeat("▓", done),
		strings.Repeat("░", progressCells-done),
		int(math.Round(fraction*100)),
	)
}

// progressBar posts a bar message and edits it as progress is reported.
// Updates are serialized, unchanged renderings are skipped and edits are
// limited to one per second, except the final one.
func (a *Adapter) progressBar(chatID int64) bot.ProgressBarFunc {
	return func(ctx context.Context, text string) (bot.ProgressFunc, error) {
		last := progressText(text, 0)
		id, err := a.client.SendText(ctx, chatID, last)
		if err != nil {
			return nil, err
		}

		var mu sync.Mutex
		limiter := rate.NewLimiter(rate.Every(time.Second), 1)
		return func(ctx context.Context, fraction float64) error {
			mu.Lock()
			defer mu.Unlock()

			next := progressText(text, fraction)
			if next == last {
				return nil
			}
			if fraction < 1 && !limiter.Allow() {
				return nil
			}
			if err := a.client.EditText(ctx, chatID, id, next, false); err != nil {
				return err
			}
			last = next
			return nil
		}, nil
	}
}

// spinner posts text with an animated frame until stopped, then marks the
// message done.
func (a *Adapter) spinner(chatID int64) bot.SpinnerFunc {
	return func(ctx context.Context, text string) (bot.StopFunc, error) {
		id, err := a.client.SendText(ctx, chatID, text+" "+spinnerFrames[0])
		if err != nil {
			return nil, err
		}

		spinCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(a.spinnerInterval)
			defer ticker.Stop()
			for frame := 1; ; frame++ {
				select {
				case <-spinCtx.Done():
					return
				case <-ticker.C:
				}
				// Frame edits are best effort.
				_ = a.client.EditText(spinCtx, chatID, id, text+" "+spinnerFrames[frame%len(spinnerFrames)], false)
			}
		}()

		var once sync.Once
		return func(ctx context.Context) error {
			var err error
			once.Do(func() {
				cancel()
				<-done
				err = a.client.EditText(ctx, chatID, id, text+" done.", false)
			})
			return err
		}, nil
	}
}
