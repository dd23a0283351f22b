package archiver

import (
	"time"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
	"github.com/HsienYu/BreakingNewsEffects/internal/progress"
)

// The emit helpers tolerate a nil emitter so progress reporting stays
// optional; every event carries the pass ID and a clock timestamp.

func (m *Manager) emit(ev progress.Event) {
	if m.emitter == nil {
		return
	}
	ev.TS = m.clock.Now()
	m.emitter.Emit(ev)
}

func (m *Manager) emitStart(pid [16]byte, mode news.PassMode) {
	m.emit(progress.Event{
		PassID: pid,
		Stage:  progress.StagePassStart,
		Mode:   string(mode),
	})
}

func (m *Manager) emitPhase(pid [16]byte, phase news.PassPhase) {
	m.emit(progress.Event{
		PassID: pid,
		Stage:  progress.StagePassPhase,
		Phase:  string(phase),
	})
}

func (m *Manager) emitDone(pid [16]byte, dur time.Duration) {
	m.emit(progress.Event{
		PassID: pid,
		Stage:  progress.StagePassDone,
		Dur:    dur,
	})
}

func (m *Manager) emitPassError(pid [16]byte, note string) {
	m.emit(progress.Event{
		PassID: pid,
		Stage:  progress.StagePassError,
		Note:   note,
	})
}

func (m *Manager) emitFetch(pid [16]byte, resp news.FetchResponse) {
	m.emit(progress.Event{
		PassID:      pid,
		Stage:       progress.StageFetchDone,
		Site:        news.Host(resp.URL),
		URL:         resp.URL,
		Bytes:       int64(len(resp.Body)),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})
}

func (m *Manager) emitItem(pid [16]byte, link string, archived bool) {
	stage := progress.StageItemDone
	if !archived {
		stage = progress.StageItemFailed
	}
	m.emit(progress.Event{
		PassID: pid,
		Stage:  stage,
		URL:    link,
	})
}

func (m *Manager) emitAsset(pid [16]byte, class news.MimeClass, cached bool, note string) {
	stage := progress.StageAssetCached
	if !cached {
		stage = progress.StageAssetSkipped
	}
	m.emit(progress.Event{
		PassID: pid,
		Stage:  stage,
		Class:  string(class),
		Note:   note,
	})
}
