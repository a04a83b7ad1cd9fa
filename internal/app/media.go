package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wacli/wacli/internal/store"
)

type mediaJob struct {
	chatJID string
	msgID   string
}

// runMediaWorkers starts a fixed pool of goroutines draining jobs off the
// queue and returns a stop func that waits for them to drain/exit. Each job
// resolves its download tuple from the store, downloads the decrypted bytes
// to <storeDir>/media/<yyyy>/<mm>/<file>, and records the local path.
// Failures are logged and not retried.
func (a *App) runMediaWorkers(ctx context.Context, jobs chan mediaJob, n int, log zerolog.Logger) (func(), error) {
	if n <= 0 {
		n = 1
	}
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					if err := a.downloadMediaJob(ctx, job); err != nil {
						log.Error().Err(err).Str("chat", job.chatJID).Str("msg_id", job.msgID).Msg("media download failed")
					}
				}
			}
		}()
	}

	// stop waits for in-flight downloads to finish. The caller is expected
	// to cancel ctx before calling stop, so the worker loops above fall
	// through their ctx.Done() case instead of blocking on jobs forever.
	stop := func() {
		wg.Wait()
	}
	return stop, nil
}

func (a *App) downloadMediaJob(ctx context.Context, job mediaJob) error {
	info, err := a.db.GetMediaDownloadInfo(job.chatJID, job.msgID)
	if err != nil {
		return fmt.Errorf("lookup media info: %w", err)
	}
	if info.DirectPath == "" {
		return fmt.Errorf("no download info for %s/%s", job.chatJID, job.msgID)
	}
	if !info.DownloadedAt.IsZero() {
		return nil
	}

	now := time.Now().UTC()
	name := info.Filename
	if name == "" {
		name = info.MsgID
	}
	targetPath := filepath.Join(a.opts.StoreDir, "media", now.Format("2006"), now.Format("01"), name)

	written, err := a.wa.DownloadMediaToFile(
		ctx,
		info.DirectPath,
		info.FileEncSHA256,
		info.FileSHA256,
		info.MediaKey,
		info.FileLength,
		info.MediaType,
		mmsTypeForMedia(info.MediaType),
		targetPath,
	)
	if err != nil {
		return err
	}
	if written <= 0 {
		return fmt.Errorf("downloaded zero bytes for %s/%s", job.chatJID, job.msgID)
	}

	return a.db.MarkMediaDownloaded(job.chatJID, job.msgID, targetPath, now)
}

func mmsTypeForMedia(mediaType string) string {
	switch mediaType {
	case "image":
		return "image"
	case "video", "gif":
		return "video"
	case "audio":
		return "audio"
	case "document":
		return "document"
	case "sticker":
		return "sticker"
	default:
		return mediaType
	}
}

// refreshContacts bulk-loads the device's contact store into the local
// mirror, useful as a bootstrap step before waiting on live events.
func (a *App) refreshContacts(ctx context.Context) error {
	contacts, err := a.wa.GetAllContacts(ctx)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	for jid, info := range contacts {
		_ = a.db.UpsertContact(jid.String(), jid.User, info.PushName, info.FullName, info.FirstName, info.BusinessName)
	}
	return nil
}

// refreshGroups bulk-loads joined groups and their participant rosters into
// the local mirror.
func (a *App) refreshGroups(ctx context.Context) error {
	groups, err := a.wa.GetJoinedGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	for _, gi := range groups {
		if gi == nil {
			continue
		}
		if err := a.db.UpsertGroup(gi.JID.String(), gi.GroupName.Name, gi.OwnerJID.String(), gi.GroupCreated); err != nil {
			continue
		}
		var ps []store.GroupParticipant
		for _, p := range gi.Participants {
			role := "member"
			if p.IsSuperAdmin {
				role = "superadmin"
			} else if p.IsAdmin {
				role = "admin"
			}
			ps = append(ps, store.GroupParticipant{
				GroupJID: gi.JID.String(),
				UserJID:  p.JID.String(),
				Role:     role,
			})
		}
		_ = a.db.ReplaceGroupParticipants(gi.JID.String(), ps)
	}
	return nil
}
