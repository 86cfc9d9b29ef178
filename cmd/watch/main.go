// Command watch follows a conversion job from the terminal. It can
// upload a presentation first or attach to a job that is already
// running, and it tracks progress over both the status poll and the
// websocket stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/slidecast/engine/internal/client"
	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/logger"
)

func main() {
	var (
		server    = flag.String("server", "http://localhost:8080", "engine base URL")
		upload    = flag.String("upload", "", "presentation to upload and watch")
		jobID     = flag.String("job", "", "existing job to watch")
		language  = flag.String("language", "en", "narration language")
		maxSlides = flag.Int("max-slides", 0, "cap on processed slides (0 uses the server default)")
		noVideo   = flag.Bool("no-video", false, "skip video generation")
		noMCQs    = flag.Bool("no-mcqs", false, "skip quiz generation")
		list      = flag.Bool("list", false, "list recent jobs and exit")
		download  = flag.String("download", "", "write the final video to this path on completion")
		pollEvery = flag.Duration("poll", 2*time.Second, "status poll interval")
	)
	flag.Parse()

	logger.Init("slidecast-watch")

	c := client.New(*server)
	ctx := context.Background()

	if *list {
		listJobs(ctx, c)
		return
	}

	id := *jobID
	if *upload != "" {
		ack, err := c.Upload(ctx, *upload, client.UploadParams{
			Language:      *language,
			MaxSlides:     *maxSlides,
			GenerateVideo: !*noVideo,
			GenerateMCQs:  !*noMCQs,
		})
		if err != nil {
			fatal("upload failed: %v", err)
		}
		fmt.Printf("Job %s accepted: %s\n", ack.JobID, ack.Message)
		id = ack.JobID
	}
	if id == "" {
		fmt.Fprintln(os.Stderr, "either -upload or -job is required")
		flag.Usage()
		os.Exit(2)
	}

	final := follow(c, id, *pollEvery)

	switch final.Status.Status {
	case interfaces.StatusCompleted:
		printResult(ctx, c, id, *download)
	case interfaces.StatusCancelled:
		fmt.Println("Job was cancelled")
		os.Exit(1)
	default:
		msg := final.Status.Error
		if msg == "" {
			msg = final.Err
		}
		fatal("job failed: %s", msg)
	}
}

// follow watches the job until it reaches a terminal state and returns
// the final snapshot.
func follow(c *client.Client, id string, pollEvery time.Duration) client.Snapshot {
	w := c.Watch(id, client.WatchOptions{PollInterval: pollEvery})
	defer w.Close()

	var last client.Snapshot
	for snap := range w.Updates() {
		printSnapshot(snap)
		last = snap
		if snap.Terminal() {
			break
		}
	}
	return last
}

func printSnapshot(snap client.Snapshot) {
	status := snap.Status
	if status.Status == "" {
		return
	}

	line := fmt.Sprintf("[%s] %3d%%", status.Status, status.ProgressValue())
	if status.TotalSlides != nil && *status.TotalSlides > 0 {
		slide := 0
		if status.CurrentSlide != nil {
			slide = *status.CurrentSlide
		}
		line += fmt.Sprintf(" slide %d/%d", slide, *status.TotalSlides)
	}
	if status.CurrentStep != "" {
		line += " " + status.CurrentStep
	}
	if snap.Phase != client.PhaseOpen {
		line += fmt.Sprintf(" (stream %s)", snap.Phase)
	}
	if snap.Err != "" {
		line += " [" + snap.Err + "]"
	}
	fmt.Println(line)
}

func printResult(ctx context.Context, c *client.Client, id, downloadTo string) {
	result, err := c.GetResult(ctx, id)
	if err != nil {
		fatal("fetch result: %v", err)
	}

	fmt.Printf("\n%s: %d slide(s) in %.1fs\n", result.Filename, len(result.Slides), result.ProcessingTime)
	for _, slide := range result.Slides {
		questions := 0
		for _, group := range slide.QA {
			questions += len(group)
		}
		fmt.Printf("  slide %d: narration %d chars, %d question(s)", slide.SlideNumber, len(slide.Narration), questions)
		if slide.VideoPath != "" {
			fmt.Printf(", video %s", slide.VideoPath)
		}
		fmt.Println()
	}
	if result.FinalVideoPath != "" {
		fmt.Printf("final video: %s\n", result.FinalVideoPath)
	}

	if downloadTo != "" && result.FinalVideoPath != "" {
		out, err := os.Create(downloadTo)
		if err != nil {
			fatal("create %s: %v", downloadTo, err)
		}
		defer out.Close()
		if err := c.Download(ctx, result.FinalVideoPath, out); err != nil {
			fatal("download final video: %v", err)
		}
		fmt.Printf("saved final video to %s\n", downloadTo)
	}
}

func listJobs(ctx context.Context, c *client.Client) {
	summaries, err := c.ListJobs(ctx, 10)
	if err != nil {
		fatal("list jobs: %v", err)
	}
	if len(summaries) == 0 {
		fmt.Println("no jobs")
		return
	}
	for _, s := range summaries {
		fmt.Printf("%s  %-10s %3d%%  %s  %s\n",
			s.JobID, s.Status, s.Progress, s.CreatedAt.Format(time.RFC3339), s.Filename)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
