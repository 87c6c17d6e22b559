package prewarm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/galleriad/immich-cache/immich"
	"github.com/galleriad/immich-cache/utils"
	log "github.com/sirupsen/logrus"
)

// AssetLister enumerates the assets of an album, ideally from cache
type AssetLister interface {
	GetAlbumAssets(ctx context.Context, albumID string, force bool) ([]*immich.Asset, error)
}

// ThumbnailWarmer populates the thumbnail cache for one asset
type ThumbnailWarmer interface {
	FetchThumbnail(ctx context.Context, assetID string, size string) ([]byte, string, error)
}

// JobConflictError is returned by StartExclusive when a job for the
// same album and size is already running
type JobConflictError struct {
	AlbumID string
	Size    string
}

// NewJobConflictError creates a JobConflictError
func NewJobConflictError(albumID string, size string) error {
	return &JobConflictError{
		AlbumID: albumID,
		Size:    size,
	}
}

// Error returns error message
func (err *JobConflictError) Error() string {
	return fmt.Sprintf("prewarm job for album %s size %s is already running", err.AlbumID, err.Size)
}

// IsJobConflictError checks if the given error is a JobConflictError
func IsJobConflictError(err error) bool {
	var target *JobConflictError
	return errors.As(err, &target)
}

// Engine runs prewarm jobs, guaranteeing at most one running job per
// (albumID, size). Duplicate start requests join the running job's
// progress stream instead of forking new upstream work.
type Engine struct {
	metadata   AssetLister
	thumbnails ThumbnailWarmer

	jobs  map[string]*Job
	mutex sync.Mutex // guards the check-if-running / create-job step only
}

// NewEngine creates a new Engine
func NewEngine(metadata AssetLister, thumbnails ThumbnailWarmer) *Engine {
	return &Engine{
		metadata:   metadata,
		thumbnails: thumbnails,
		jobs:       map[string]*Job{},
	}
}

func jobKey(albumID string, size string) string {
	return albumID + "/" + size
}

// Start returns the running job for the album and size, creating one if
// none is running. The second return value reports whether an existing
// job was joined.
func (engine *Engine) Start(albumID string, size string) (*Job, bool) {
	logger := log.WithFields(log.Fields{
		"package":  "prewarm",
		"struct":   "Engine",
		"function": "Start",
	})

	key := jobKey(albumID, size)

	engine.mutex.Lock()

	if job, ok := engine.jobs[key]; ok && job.GetStatus() == StatusRunning {
		engine.mutex.Unlock()
		logger.Debugf("joining running prewarm job %s for album %s", job.GetID(), albumID)
		return job, true
	}

	job := newJob(albumID, size)
	engine.jobs[key] = job
	engine.mutex.Unlock()

	logger.Infof("starting prewarm job %s for album %s size %s", job.GetID(), albumID, size)

	go engine.run(job)

	return job, false
}

// StartExclusive creates a new job, failing with JobConflictError when a
// job for the same album and size is already running
func (engine *Engine) StartExclusive(albumID string, size string) (*Job, error) {
	job, joined := engine.Start(albumID, size)
	if joined {
		return nil, NewJobConflictError(albumID, size)
	}
	return job, nil
}

// GetJob returns the tracked job for the album and size, or nil
func (engine *Engine) GetJob(albumID string, size string) *Job {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	return engine.jobs[jobKey(albumID, size)]
}

// run walks the album's assets, warming the thumbnail cache for each.
// It runs in the background with its own context: observers disconnecting
// does not cancel shared work.
func (engine *Engine) run(job *Job) {
	logger := log.WithFields(log.Fields{
		"package":  "prewarm",
		"struct":   "Engine",
		"function": "run",
	})

	defer utils.StackTraceFromPanic(logger)

	ctx := context.Background()

	assets, err := engine.metadata.GetAlbumAssets(ctx, job.GetAlbumID(), false)
	if err != nil {
		logger.WithError(err).Errorf("prewarm job %s failed to list assets of album %s", job.GetID(), job.GetAlbumID())
		engine.finish(job, err)
		return
	}

	job.setTotal(len(assets))

	for _, asset := range assets {
		// a single failed asset does not abort the walk
		_, _, err := engine.thumbnails.FetchThumbnail(ctx, asset.ID, job.GetSize())
		if err != nil {
			logger.WithError(err).Warnf("prewarm job %s failed to warm thumbnail for asset %s", job.GetID(), asset.ID)
		}

		job.incrementDone(err != nil)
	}

	done, total := job.GetProgress()
	logger.Infof("prewarm job %s finished: %d/%d warmed, %d failed", job.GetID(), done, total, job.GetFailed())

	engine.finish(job, nil)
}

// finish delivers the terminal event, then unregisters the job so a
// later prewarm request starts fresh
func (engine *Engine) finish(job *Job, err error) {
	job.finish(err)

	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	key := jobKey(job.GetAlbumID(), job.GetSize())
	if engine.jobs[key] == job {
		delete(engine.jobs, key)
	}
}
