package main

import (
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/hybridrag/pkg/ingest"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// ingestProgress renders one bar per ingestion stage. Calls are serialized
// by the ingestor.
func ingestProgress() (func(ingest.Progress), func()) {
	var (
		stage string
		bar   *progressbar.ProgressBar
	)
	report := func(p ingest.Progress) {
		if p.Stage != stage {
			if bar != nil {
				bar.Finish()
			}
			stage = p.Stage
			switch stage {
			case ingest.StageLoad:
				bar = getProgressBar(p.Total, "📄 Loading documents...")
			default:
				bar = getProgressBar(p.Total, "💾 Embedding batches...")
			}
		}
		if p.Item != "" {
			bar.Describe(color.BlueString("📄 Loading %s", p.Item))
		}
		bar.Set(p.Done)
	}
	finish := func() {
		if bar != nil {
			bar.Finish()
		}
	}
	return report, finish
}
