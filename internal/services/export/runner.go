package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// progressInterval is how many processed records sit between counter
// flushes and progress log entries.
const progressInterval = 10

// runExport drives one export job to a terminal state.
func (s *Service) runExport(handle *runnerHandle) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("export_id", handle.jobID).Msgf("Export runner panicked: %v", r)
			s.markFailed(handle.jobID, fmt.Sprintf("runner panic: %v", r))
		}
		s.mu.Lock()
		if s.running[handle.jobID] == handle {
			delete(s.running, handle.jobID)
		}
		s.mu.Unlock()
		close(handle.done)
		s.wg.Done()
	}()

	s.stream(handle)
}

// stream walks matching businesses oldest first and pushes them to the
// endpoint one record at a time, flushing counters every ten records.
func (s *Service) stream(handle *runnerHandle) {
	ctx := s.ctx
	jobID := handle.jobID

	job, err := s.exports.GetJob(ctx, jobID)
	if err != nil {
		s.markFailed(jobID, fmt.Sprintf("load export job: %v", err))
		return
	}

	filter := businessFilter(&job.Filters)
	total, err := s.businesses.Count(ctx, filter)
	if err != nil {
		s.markFailed(jobID, fmt.Sprintf("count matching businesses: %v", err))
		return
	}
	if err := s.exports.UpdateJob(ctx, jobID, func(j *models.ExportJob) {
		j.TotalRecords = total
	}); err != nil {
		s.markFailed(jobID, fmt.Sprintf("record total: %v", err))
		return
	}

	s.logger.Info().
		Str("export_id", jobID).
		Str("endpoint", job.EndpointURL).
		Int("total_records", total).
		Msg("Export streaming started")

	client := NewClient(job.EndpointURL,
		WithMethod(job.RequestMethod),
		WithAuthToken(job.AuthToken),
		WithRateLimitDelay(job.RateLimitDelay),
		WithLogger(s.logger),
	)

	var (
		exported, failed, processed int
		batches                     int
		stopped                     bool
	)
	delay := time.Duration(job.RateLimitDelay * float64(time.Second))

walk:
	for skip := 0; ; {
		// The job may have been deleted mid-run.
		if _, err := s.exports.GetJob(ctx, jobID); err != nil {
			s.logger.Warn().Str("export_id", jobID).Msg("Export job vanished mid-run, runner exiting")
			return
		}

		filter.Skip, filter.Limit = skip, job.BatchSize
		batch, err := s.businesses.ListForExport(ctx, filter)
		if err != nil {
			s.persistCounters(jobID, exported, failed)
			s.markFailed(jobID, fmt.Sprintf("load export batch: %v", err))
			return
		}
		if len(batch) == 0 {
			break
		}

		for _, b := range batch {
			if handle.stop.Load() {
				stopped = true
				break walk
			}

			result, err := s.sendOne(ctx, client, job.Fields, b)
			if err != nil && ctx.Err() != nil {
				stopped = true
				break walk
			}

			processed++
			switch {
			case err != nil:
				failed++
				s.appendRunLog(jobID, batches+1, 1, false, 0, "", fmt.Sprintf("record %s: %v", b.ID, err))
			case !result.Success():
				failed++
				s.appendRunLog(jobID, batches+1, 1, false, result.StatusCode, result.Body, "")
			default:
				exported++
			}

			if processed%progressInterval == 0 {
				batches++
				s.persistCounters(jobID, exported, failed)
				s.appendRunLog(jobID, batches, progressInterval, true, 0,
					fmt.Sprintf("%d of %d processed, %d exported, %d failed", processed, total, exported, failed), "")
				s.emitExportProgress(jobID, total, exported, failed)
			}

			if delay > 0 && !sleepUnlessStopped(handle, delay) {
				stopped = true
				break walk
			}
		}
		skip += len(batch)
	}

	s.finish(jobID, total, exported, failed, processed, batches, stopped)
}

// sendOne projects and pushes a single business record.
func (s *Service) sendOne(ctx context.Context, client *Client, fields []string, b *models.Business) (*SendResult, error) {
	record, err := exportRecord(b, fields)
	if err != nil {
		return nil, err
	}
	return client.SendRecord(ctx, record)
}

// finish writes the terminal state after the stream loop ends.
func (s *Service) finish(jobID string, total, exported, failed, processed, batches int, stopped bool) {
	status := models.ExportStatusCompleted
	if stopped {
		status = models.ExportStatusCancelled
	}

	now := time.Now()
	err := s.exports.UpdateJob(context.Background(), jobID, func(j *models.ExportJob) {
		j.Status = status
		j.CompletedAt = &now
		j.ExportedRecords = exported
		j.FailedRecords = failed
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("export_id", jobID).Msg("Failed to finalize export job")
		return
	}

	s.appendRunLog(jobID, batches+1, processed, true, 0,
		fmt.Sprintf("export %s: %d of %d processed, %d exported, %d failed",
			status, processed, total, exported, failed), "")

	s.logger.Info().
		Str("export_id", jobID).
		Str("status", string(status)).
		Int("exported", exported).
		Int("failed", failed).
		Int("total", total).
		Msg("Export finished")
	s.emitSnapshot(interfaces.EventExportCompleted, jobID)
}

// markFailed records a fatal runner error.
func (s *Service) markFailed(jobID, msg string) {
	now := time.Now()
	err := s.exports.UpdateJob(context.Background(), jobID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusFailed
		j.ErrorMessage = msg
		j.CompletedAt = &now
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("export_id", jobID).Msg("Failed to mark export failed")
		return
	}

	s.logger.Error().Str("export_id", jobID).Str("error", msg).Msg("Export failed")
	s.emitSnapshot(interfaces.EventExportCompleted, jobID)
}

// persistCounters flushes progress counters without touching status.
func (s *Service) persistCounters(jobID string, exported, failed int) {
	err := s.exports.UpdateJob(context.Background(), jobID, func(j *models.ExportJob) {
		j.ExportedRecords = exported
		j.FailedRecords = failed
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("export_id", jobID).Msg("Failed to persist export counters")
	}
}

// appendRunLog writes one run log entry; failures are logged, not fatal.
func (s *Service) appendRunLog(jobID string, batch, count int, success bool, status int, message, errDetails string) {
	entry := &models.ExportLog{
		ID:              common.NewExportLogID(),
		JobID:           jobID,
		BatchNumber:     batch,
		RecordsCount:    count,
		Success:         success,
		ResponseStatus:  status,
		ResponseMessage: message,
		ErrorDetails:    errDetails,
		Timestamp:       time.Now(),
	}
	if err := s.exports.AppendLog(context.Background(), entry); err != nil {
		s.logger.Warn().Err(err).Str("export_id", jobID).Msg("Failed to append export log")
	}
}

// emitExportProgress publishes a mid-run progress event.
func (s *Service) emitExportProgress(jobID string, total, exported, failed int) {
	payload := map[string]interface{}{
		"export_id":        jobID,
		"total_records":    total,
		"exported_records": exported,
		"failed_records":   failed,
	}
	event := interfaces.Event{Type: interfaces.EventExportProgress, Payload: payload}
	if err := s.events.Publish(s.ctx, event); err != nil {
		s.logger.Debug().Err(err).Str("export_id", jobID).Msg("Failed to publish export progress")
	}
}

// sleepUnlessStopped pauses between records; returns false when the
// stop flag interrupted the sleep.
func sleepUnlessStopped(handle *runnerHandle, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-handle.stopCh:
		return false
	}
}

// businessFilter maps the job's export filters onto the store filter.
func businessFilter(f *models.ExportFilters) *interfaces.BusinessFilter {
	return &interfaces.BusinessFilter{
		City:     f.City,
		Category: f.Category,
		DateFrom: f.DateFrom,
		DateTo:   f.DateTo,
	}
}

// exportRecord projects a business onto its JSON field names, keeping
// only the selected fields when any are named.
func exportRecord(b *models.Business, fields []string) (map[string]interface{}, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode business: %w", err)
	}
	var record map[string]interface{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode business: %w", err)
	}

	if len(fields) == 0 {
		return record, nil
	}
	projected := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		if v, ok := record[field]; ok {
			projected[field] = v
		}
	}
	return projected, nil
}
