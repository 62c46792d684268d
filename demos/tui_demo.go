// Demo program to showcase the Rapport TUI with a realistic two-week chat.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"rapport-agent/src/contracts"
	"rapport-agent/src/pipeline"
	"rapport-agent/src/tui"
)

// exchange is one short back-and-forth on a given day.
type exchange struct {
	day   int
	clock string
	lines [][2]string
}

var script = []exchange{
	{0, "08:10", [][2]string{
		{"Maya", "good morning! slept so well last night"},
		{"Jordan", "morning! glad to hear it, big day today?"},
		{"Maya", "yes, the design review. wish me luck"},
		{"Jordan", "you'll be amazing, I'm proud of you"},
	}},
	{0, "19:45", [][2]string{
		{"Maya", "it went great!! they loved it"},
		{"Jordan", "I knew it! let's celebrate, dinner on me?"},
		{"Maya", "yes please, thank you"},
	}},
	{2, "12:30", [][2]string{
		{"Jordan", "can you pick up groceries tonight?"},
		{"Maya", "I can't, working late again"},
		{"Jordan", "you always work late"},
		{"Maya", "that's not fair"},
	}},
	{2, "22:05", [][2]string{
		{"Jordan", "sorry for what I said earlier, I was stressed"},
		{"Maya", "thanks for saying that. I'm sorry too"},
	}},
	{5, "09:00", [][2]string{
		{"Maya", "what do you want to do this weekend?"},
		{"Jordan", "hiking? the weather looks perfect"},
		{"Maya", "love that idea"},
		{"Jordan", "I'll pack snacks"},
	}},
	{7, "18:20", [][2]string{
		{"Jordan", "why didn't you answer my calls"},
		{"Maya", "I was in meetings all afternoon"},
		{"Jordan", "whatever"},
		{"Maya", "please don't be like that"},
	}},
	{8, "07:55", [][2]string{
		{"Jordan", "I'm sorry about yesterday. I miss you when the days get busy"},
		{"Maya", "I miss you too. let's plan something together"},
		{"Jordan", "dinner friday? I'll book the place you like"},
		{"Maya", "perfect, thank you"},
	}},
	{11, "21:10", [][2]string{
		{"Maya", "that was such a fun night"},
		{"Jordan", "best friday in a while. love you"},
		{"Maya", "love you more"},
	}},
	{13, "08:30", [][2]string{
		{"Jordan", "good luck at the dentist!"},
		{"Maya", "haha thanks, you're sweet"},
		{"Jordan", "call me after?"},
		{"Maya", "of course"},
	}},
}

// sampleConversation renders the script as an ISO-timestamped export.
func sampleConversation(start time.Time) string {
	var b strings.Builder
	for _, ex := range script {
		at, _ := time.Parse("15:04", ex.clock)
		ts := start.AddDate(0, 0, ex.day).Add(time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute)
		for i, line := range ex.lines {
			fmt.Fprintf(&b, "%s %s: %s\n", ts.Add(time.Duration(i*3)*time.Minute).Format("2006-01-02 15:04:05"), line[0], line[1])
		}
	}
	return b.String()
}

func main() {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	in := contracts.AnalysisInput{
		Content:    sampleConversation(start),
		Format:     contracts.FormatPaste,
		SourceName: "demo.txt",
		Personalization: contracts.Personalization{
			AnalysisGoal: "understand how we handle busy weeks",
		},
	}

	fmt.Printf("Loaded %d exchanges over two weeks.\n", len(script))
	fmt.Println("Launching TUI...")
	time.Sleep(500 * time.Millisecond) // Brief pause for effect

	orch := pipeline.New()
	_, err := tui.Start(context.Background(), func(ctx context.Context, onProgress pipeline.ProgressFunc) (*contracts.Report, error) {
		return orch.RunWithProgress(ctx, in, func(p pipeline.Progress) {
			onProgress(p)
			time.Sleep(120 * time.Millisecond) // Slow enough to watch the progress screen
		})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
