package forge

import (
	"context"
	"time"
)

// TimingMiddleware records wall-clock duration of each operation
// invocation into the foundry's properties.
type TimingMiddleware struct {
	IncludeDetailedTimings bool
}

// NewTimingMiddleware builds a TimingMiddleware from options.
func NewTimingMiddleware(opts TimingOptions) *TimingMiddleware {
	return &TimingMiddleware{IncludeDetailedTimings: opts.IncludeDetailedTimings}
}

func (m *TimingMiddleware) Execute(ctx context.Context, op Operation, f *Foundry, input any, next Next) (any, error) {
	start := f.Clock().Now()
	if m.IncludeDetailedTimings {
		f.Properties().Set(PropTimingStart, start)
	}

	output, err := next(ctx, input)

	end := f.Clock().Now()
	duration := end.Sub(start)
	if m.IncludeDetailedTimings {
		f.Properties().Set(PropTimingEnd, end)
	}
	f.Properties().Set(PropTimingDuration, duration.Milliseconds())
	f.Properties().Set(PropTimingDurationTicks, int64(duration))

	if err != nil {
		f.Properties().Set(PropTimingFailed, true)
		return output, err
	}
	f.Properties().Delete(PropTimingFailed)
	return output, nil
}
