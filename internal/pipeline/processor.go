package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/llm"
	"github.com/slidecast/engine/internal/logger"
	"github.com/slidecast/engine/internal/metrics"
	"github.com/slidecast/engine/internal/pptx"
)

// Generator produces narration and quiz text for slides.
type Generator interface {
	GenerateNarration(ctx context.Context, slideText, lang string) (string, error)
	GenerateMCQs(ctx context.Context, slideText, lang string) (string, error)
}

// Speech turns narration text into an audio file and returns its path.
type Speech interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// Media renders slide cards and assembles the per-slide and final videos.
type Media interface {
	RenderSlideCard(ctx context.Context, text string) (string, error)
	CreateSlideVideo(ctx context.Context, imagePath, audioPath string) (string, error)
	Stitch(ctx context.Context, videoPaths []string) (string, error)
}

// Processor turns an uploaded presentation into narrated slide videos
// and quiz questions, reporting progress through the job manager.
type Processor struct {
	manager *jobs.Manager
	gen     Generator
	speech  Speech
	media   Media
	parse   func(path string) ([]pptx.Slide, error)
}

func NewProcessor(manager *jobs.Manager, gen Generator, speech Speech, media Media) *Processor {
	return &Processor{
		manager: manager,
		gen:     gen,
		speech:  speech,
		media:   media,
		parse:   pptx.Parse,
	}
}

// Process runs the full conversion for one claimed job and returns its
// result. The job record is not moved to a terminal state here, that
// is the caller's decision based on the returned error.
func (p *Processor) Process(ctx context.Context, job *interfaces.Job) (*interfaces.JobResult, error) {
	log := logger.WithJobID(job.ID)
	log.Info().Str("file", job.UploadPath).Msg("Starting processing")

	startTime := time.Now().UTC()

	p.manager.UpdateProgress(job.ID, 5, 0, "Parsing presentation")

	allSlides, err := p.parse(job.UploadPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePPTParse, fmt.Sprintf("failed to parse %s", job.Filename), err)
	}

	var slides []pptx.Slide
	for _, s := range allSlides {
		if !s.HasText() {
			continue
		}
		slides = append(slides, s)
		if job.MaxSlides > 0 && len(slides) == job.MaxSlides {
			break
		}
	}
	totalSlides := len(slides)

	if totalSlides == 0 {
		log.Warn().Msg("No slides with text found")
		return &interfaces.JobResult{
			JobID:       job.ID,
			Status:      interfaces.StatusCompleted,
			Filename:    job.Filename,
			Language:    job.Language,
			Slides:      []interfaces.SlideResult{},
			CreatedAt:   startTime,
			CompletedAt: time.Now().UTC(),
		}, nil
	}

	slideNumbers := make([]int, 0, totalSlides)
	for _, s := range slides {
		slideNumbers = append(slideNumbers, s.Number)
	}
	if err := p.manager.StartProcessing(job.ID, slideNumbers); err != nil {
		return nil, err
	}
	log.Info().Ints("slides", slideNumbers).Msg("Processing slides")

	results := make([]interfaces.SlideResult, 0, totalSlides)
	var videoPaths []string

	for idx, slide := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// A cancel request may land before the worker has registered
		// its context, so the stored status is checked as well.
		if cancelled, err := p.cancelled(job.ID); err != nil {
			return nil, err
		} else if cancelled {
			return nil, context.Canceled
		}

		base := 10 + idx*80/totalSlides
		p.manager.UpdateProgress(job.ID, base, slide.Number, fmt.Sprintf("Processing slide %d", slide.Number))

		result := p.processSlide(ctx, job, slide, base)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results = append(results, result)
		if result.VideoPath != "" {
			videoPaths = append(videoPaths, result.VideoPath)
		}
		metrics.SlidesProcessedTotal.Inc()
	}

	var finalVideoPath string
	if job.GenerateVideo && len(videoPaths) > 0 {
		p.manager.UpdateProgress(job.ID, 95, 0, "Stitching final video")

		finalVideoPath, err = p.media.Stitch(ctx, videoPaths)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			// A broken final video never fails the whole job, the
			// per-slide videos are still delivered in the result.
			log.Error().Err(err).Msg("Video stitching failed")
			finalVideoPath = ""
		} else {
			log.Info().Str("path", finalVideoPath).Msg("Final video created")
		}
	}

	endTime := time.Now().UTC()
	processingTime := endTime.Sub(startTime).Seconds()

	log.Info().Float64("seconds", processingTime).Msg("Processing completed")

	return &interfaces.JobResult{
		JobID:          job.ID,
		Status:         interfaces.StatusCompleted,
		Filename:       job.Filename,
		Language:       job.Language,
		Slides:         results,
		FinalVideoPath: finalVideoPath,
		ProcessingTime: processingTime,
		CreatedAt:      startTime,
		CompletedAt:    endTime,
	}, nil
}

// processSlide runs narration first, then quiz generation and the
// video chain concurrently. A stage failure is recorded on the slide
// and processing moves on, only cancellation stops the job.
func (p *Processor) processSlide(ctx context.Context, job *interfaces.Job, slide pptx.Slide, base int) interfaces.SlideResult {
	num := slide.Number

	result := interfaces.SlideResult{
		SlideNumber: num,
		Text:        slide.Text,
		HasText:     true,
	}

	p.manager.UpdateSlideStage(job.ID, num, jobs.StageUpdate{Narration: interfaces.StageProcessing})
	p.manager.UpdateProgress(job.ID, base+5, 0, fmt.Sprintf("Generating narration for slide %d", num))

	narration, err := p.gen.GenerateNarration(ctx, slide.Text, job.Language)
	if err != nil {
		p.recordSlideError(ctx, job, &result, err)
		return result
	}
	result.Narration = narration
	p.manager.UpdateSlideStage(job.ID, num, jobs.StageUpdate{Narration: interfaces.StageCompleted})

	group, groupCtx := errgroup.WithContext(ctx)

	if job.GenerateMCQs {
		group.Go(func() error {
			return p.generateQuiz(groupCtx, job, slide, &result, base)
		})
	}

	// Slides whose narration came back empty have nothing to voice, so
	// they get no video.
	if job.GenerateVideo && narration != "" {
		group.Go(func() error {
			return p.produceVideo(groupCtx, job, narration, slide, &result, base)
		})
	}

	if err := group.Wait(); err != nil {
		p.recordSlideError(ctx, job, &result, err)
	}
	return result
}

func (p *Processor) generateQuiz(ctx context.Context, job *interfaces.Job, slide pptx.Slide, result *interfaces.SlideResult, base int) error {
	num := slide.Number
	log := logger.WithSlide(job.ID, num)

	p.manager.UpdateSlideStage(job.ID, num, jobs.StageUpdate{MCQ: interfaces.StageProcessing})
	p.manager.UpdateProgress(job.ID, base+10, 0, fmt.Sprintf("Generating MCQs for slide %d", num))

	raw, err := p.gen.GenerateMCQs(ctx, slide.Text, job.Language)
	if err != nil {
		return err
	}

	questions := llm.ValidateAndFixMCQs(raw)
	if len(questions) == 0 || !llm.QuestionsInLanguage(questions, job.Language) {
		log.Warn().Msg("MCQ validation failed, retrying")

		raw, err = p.gen.GenerateMCQs(ctx, slide.Text, job.Language)
		if err != nil {
			return err
		}
		questions = llm.ValidateAndFixMCQs(raw)
		if !llm.QuestionsInLanguage(questions, job.Language) {
			log.Error().Msg("MCQ language validation failed after retry")
			questions = nil
		}
	}

	result.QA = llm.GroupByDifficulty(questions)
	p.manager.UpdateSlideStage(job.ID, num, jobs.StageUpdate{MCQ: interfaces.StageCompleted})
	return nil
}

func (p *Processor) produceVideo(ctx context.Context, job *interfaces.Job, narration string, slide pptx.Slide, result *interfaces.SlideResult, base int) error {
	num := slide.Number

	p.manager.UpdateSlideStage(job.ID, num, jobs.StageUpdate{Video: interfaces.StageProcessing})
	p.manager.UpdateProgress(job.ID, base+15, 0, fmt.Sprintf("Creating video for slide %d", num))

	audioPath, err := p.speech.Synthesize(ctx, narration, job.Language)
	if err != nil {
		return err
	}
	result.AudioPath = audioPath

	imagePath, err := p.media.RenderSlideCard(ctx, slide.Text)
	if err != nil {
		return err
	}
	result.ImagePath = imagePath

	videoPath, err := p.media.CreateSlideVideo(ctx, imagePath, audioPath)
	if err != nil {
		return err
	}
	result.VideoPath = videoPath

	p.manager.UpdateSlideStage(job.ID, num, jobs.StageUpdate{Video: interfaces.StageCompleted})
	return nil
}

// recordSlideError marks the stages a slide did not finish as failed.
// Stages that completed already carry their own marks, and stages the
// job never asked for keep their prior state. Cancellation is not a
// slide error, it propagates to the caller untouched.
func (p *Processor) recordSlideError(ctx context.Context, job *interfaces.Job, result *interfaces.SlideResult, cause error) {
	if ctx.Err() != nil {
		return
	}

	logger.WithSlide(job.ID, result.SlideNumber).Error().Err(cause).Msg("Error processing slide")

	update := jobs.StageUpdate{Error: cause.Error()}
	if result.Narration == "" {
		update.Narration = interfaces.StageFailed
	}
	if job.GenerateMCQs && len(result.QA) == 0 {
		update.MCQ = interfaces.StageFailed
	}
	if job.GenerateVideo && result.VideoPath == "" {
		update.Video = interfaces.StageFailed
	}

	p.manager.UpdateSlideStage(job.ID, result.SlideNumber, update)
}

func (p *Processor) cancelled(id string) (bool, error) {
	job, err := p.manager.GetJob(id)
	if err != nil {
		return false, err
	}
	return job.Status == interfaces.StatusCancelled, nil
}
