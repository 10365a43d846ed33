// Command stepup serves SMS one-time-code step-up challenges to an
// authentication pipeline.
package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/stepup/internal/app"
)

// shutdownGrace covers the HTTP drain plus one provider round trip for a
// challenge caught mid-dispatch.
const shutdownGrace = 15 * time.Second

func main() {
	stepup := app.New()
	<-stepup.Start()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	stepup.Stop(ctx)
}
