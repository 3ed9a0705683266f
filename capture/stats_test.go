package capture

import (
	"io"
	"testing"

	"github.com/ausocean/utils/logging"

	"github.com/stefan-olt/misrc-go/pipeline"
)

func TestLevelReporterFlushesAtWindow(t *testing.T) {
	log := logging.New(logging.Debug, io.Discard, false)
	r := newLevelReporter(log)

	for i := 0; i < levelWindow-1; i++ {
		r.Report(pipeline.Stats{Peak: [2]uint16{100, 200}})
	}
	if len(r.winA) != levelWindow-1 {
		t.Fatalf("winA len = %d, want %d before the window fills", len(r.winA), levelWindow-1)
	}

	r.Report(pipeline.Stats{Peak: [2]uint16{100, 200}})
	if len(r.winA) != 0 {
		t.Fatalf("winA len = %d, want 0 after the window flushes", len(r.winA))
	}
}
