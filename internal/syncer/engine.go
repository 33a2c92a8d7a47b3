package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/zeronotes/client-go/internal/entity"
	"github.com/zeronotes/client-go/internal/store"
)

// ErrSyncInProgress is returned when a cycle is requested while another
// one is still running. The caller should retry after the current cycle
// finishes; requests are rejected immediately, never queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// Report summarizes one completed sync cycle.
type Report struct {
	// Pulled is the number of remote changes applied locally.
	Pulled int
	// Pushed is the number of local changes the server accepted.
	Pushed int
	// Conflicts is the number of entities where both sides had changed.
	Conflicts int
	// SyncVersion is the account version counter after the cycle.
	SyncVersion uint64
}

// Engine runs pull-merge-push cycles between a local store and a
// transport. At most one cycle runs at a time.
type Engine struct {
	store     store.Store
	transport Transport
	deviceID  string
	log       *zap.Logger

	inFlight atomic.Bool
}

// NewEngine creates a sync engine.
func NewEngine(s store.Store, t Transport, deviceID string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:     s,
		transport: t,
		deviceID:  deviceID,
		log:       log,
	}
}

// InProgress reports whether a cycle is currently running.
func (e *Engine) InProgress() bool {
	return e.inFlight.Load()
}

// Sync runs one full cycle: pull remote changes, merge them against
// local state, push local modifications, then advance the stored sync
// version. On transport failure local dirty flags are left untouched,
// so the next cycle retries the same changes.
func (e *Engine) Sync(ctx context.Context) (*Report, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer e.inFlight.Store(false)

	since, err := e.lastSyncVersion()
	if err != nil {
		return nil, err
	}

	report := &Report{}

	remote, err := e.transport.PullChanges(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("pull changes: %w", err)
	}
	if err := e.merge(remote, report); err != nil {
		return nil, err
	}
	report.SyncVersion = remote.CurrentSyncVersion

	if err := e.push(ctx, report); err != nil {
		return nil, err
	}

	if err := e.storeSyncVersion(report.SyncVersion); err != nil {
		return nil, err
	}

	e.log.Debug("sync cycle complete",
		zap.Int("pulled", report.Pulled),
		zap.Int("pushed", report.Pushed),
		zap.Int("conflicts", report.Conflicts),
		zap.Uint64("sync_version", report.SyncVersion))

	return report, nil
}

// merge applies pulled changes. Clean local entities take the remote
// copy unconditionally. When both sides changed, the strictly newer
// updatedAt wins; on a tie the local copy stands. Either way the
// conflict is counted, never silent.
//
// Lockout state is device-local: it never arrives from a remote copy,
// and an existing local lockout survives the adoption of one.
func (e *Engine) merge(remote *ChangeSet, report *Report) error {
	for _, rn := range remote.Notes {
		local, err := e.store.GetNote(rn.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			rn.Lockout = entity.Lockout{}
			if err := e.store.PutNote(rn); err != nil {
				return err
			}
			report.Pulled++
		case err != nil:
			return err
		case !local.Dirty:
			if rn.SyncVersion > local.SyncVersion {
				rn.Lockout = local.Lockout
				if err := e.store.PutNote(rn); err != nil {
					return err
				}
				report.Pulled++
			}
		default:
			report.Conflicts++
			if rn.UpdatedAt.After(local.UpdatedAt) {
				rn.Lockout = local.Lockout
				e.log.Info("conflict resolved for remote copy",
					zap.String("id", rn.ID),
					zap.String("kind", string(entity.KindNote)))
				if err := e.store.PutNote(rn); err != nil {
					return err
				}
				report.Pulled++
			} else {
				e.log.Info("conflict resolved for local copy",
					zap.String("id", rn.ID),
					zap.String("kind", string(entity.KindNote)))
				// Rebase the local edit onto the server version so the
				// push that follows is accepted.
				local.SyncVersion = rn.SyncVersion
				if err := e.store.PutNote(local); err != nil {
					return err
				}
			}
		}
	}

	for _, rf := range remote.Folders {
		local, err := e.store.GetFolder(rf.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			rf.Lockout = entity.Lockout{}
			if err := e.store.PutFolder(rf); err != nil {
				return err
			}
			report.Pulled++
		case err != nil:
			return err
		case !local.Dirty:
			if rf.SyncVersion > local.SyncVersion {
				rf.Lockout = local.Lockout
				if err := e.store.PutFolder(rf); err != nil {
					return err
				}
				report.Pulled++
			}
		default:
			report.Conflicts++
			if rf.UpdatedAt.After(local.UpdatedAt) {
				rf.Lockout = local.Lockout
				e.log.Info("conflict resolved for remote copy",
					zap.String("id", rf.ID),
					zap.String("kind", string(entity.KindFolder)))
				if err := e.store.PutFolder(rf); err != nil {
					return err
				}
				report.Pulled++
			} else {
				e.log.Info("conflict resolved for local copy",
					zap.String("id", rf.ID),
					zap.String("kind", string(entity.KindFolder)))
				local.SyncVersion = rf.SyncVersion
				if err := e.store.PutFolder(local); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// push uploads dirty entities and clears their dirty flags once the
// server confirms the assigned versions.
func (e *Engine) push(ctx context.Context, report *Report) error {
	notes, err := e.store.DirtyNotes()
	if err != nil {
		return err
	}
	folders, err := e.store.DirtyFolders()
	if err != nil {
		return err
	}
	if len(notes) == 0 && len(folders) == 0 {
		return nil
	}

	// Attempt counters stay on this device.
	outNotes := make([]*entity.Note, len(notes))
	for i, n := range notes {
		cn := n.Clone()
		cn.Lockout = entity.Lockout{}
		outNotes[i] = cn
	}
	outFolders := make([]*entity.Folder, len(folders))
	for i, f := range folders {
		cf := f.Clone()
		cf.Lockout = entity.Lockout{}
		outFolders[i] = cf
	}

	result, err := e.transport.PushChanges(ctx, e.deviceID, outNotes, outFolders)
	if err != nil {
		return fmt.Errorf("push changes: %w", err)
	}

	for _, a := range result.AcceptedNotes {
		n, err := e.store.GetNote(a.ID)
		if err != nil {
			return err
		}
		n.SyncVersion = a.SyncVersion
		n.LastModifiedDeviceID = e.deviceID
		n.Dirty = false
		if err := e.store.PutNote(n); err != nil {
			return err
		}
		report.Pushed++
	}
	for _, a := range result.AcceptedFolders {
		f, err := e.store.GetFolder(a.ID)
		if err != nil {
			return err
		}
		f.SyncVersion = a.SyncVersion
		f.LastModifiedDeviceID = e.deviceID
		f.Dirty = false
		if err := e.store.PutFolder(f); err != nil {
			return err
		}
		report.Pushed++
	}

	// A push conflict means the server moved between our pull and push.
	// The entity stays dirty and the next cycle re-arbitrates it.
	report.Conflicts += len(result.Conflicts)
	for _, c := range result.Conflicts {
		e.log.Info("push rejected, server copy is newer",
			zap.String("id", c.ID),
			zap.String("kind", string(c.Kind)),
			zap.Uint64("server_version", c.ServerVersion))
	}

	if result.CurrentSyncVersion > report.SyncVersion {
		report.SyncVersion = result.CurrentSyncVersion
	}
	return nil
}

func (e *Engine) lastSyncVersion() (uint64, error) {
	raw, err := e.store.GetMeta(store.MetaLastSyncVersion)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt sync version %q: %w", raw, err)
	}
	return v, nil
}

func (e *Engine) storeSyncVersion(v uint64) error {
	return e.store.PutMeta(store.MetaLastSyncVersion, []byte(strconv.FormatUint(v, 10)))
}
