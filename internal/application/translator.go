package application

import (
	"log/slog"

	"github.com/jobrunner/leafsync/internal/domain"
)

// translator turns collection changes into runtime calls. Structural
// changes have no update primitive, so replace and move become a destroy of
// every old entry followed by a create of every new entry.
type translator struct {
	handles  *HandleRegistry
	dispatch *dispatcher
	logger   *slog.Logger
}

func (t *translator) apply(ch change) error {
	t.logger.Debug("translating change",
		"map", t.dispatch.mapID, "kind", ch.kind.String(),
		"old", len(ch.oldItems), "new", len(ch.newItems))

	switch ch.kind {
	case changeAdd:
		return t.createAll(ch.newItems)
	case changeRemove:
		return t.destroyAll(ch.oldItems)
	case changeReplace, changeMove:
		if err := t.destroyAll(ch.oldItems); err != nil {
			return err
		}
		return t.createAll(ch.newItems)
	default:
		return nil
	}
}

func (t *translator) createAll(items []domain.Layer) error {
	for _, l := range items {
		if err := t.create(l); err != nil {
			return err
		}
	}
	return nil
}

func (t *translator) destroyAll(items []domain.Layer) error {
	for _, l := range items {
		if err := t.destroy(l); err != nil {
			return err
		}
	}
	return nil
}

func (t *translator) create(l domain.Layer) error {
	method, err := createMethod(l)
	if err != nil {
		t.logger.Error("layer variant has no runtime translation",
			"map", t.dispatch.mapID, "layer", l.LayerID(), "error", err)
		return err
	}

	if _, created := t.handles.Register(l); !created {
		t.logger.Warn("layer id already has a handle",
			"map", t.dispatch.mapID, "layer", l.LayerID())
	}

	if cluster := l.Cluster(); cluster != nil {
		return t.dispatch.detach(method, l.LayerID(), l, *cluster)
	}
	return t.dispatch.detach(method, l.LayerID(), l)
}

// destroy releases the handle first. The runtime call is issued even when
// no handle was registered.
func (t *translator) destroy(l domain.Layer) error {
	t.handles.Release(l.LayerID())

	if cluster := l.Cluster(); cluster != nil {
		return t.dispatch.detach(MethodRemoveLayerFromCluster, l.LayerID(), l.LayerID(), *cluster)
	}
	return t.dispatch.detach(MethodRemoveLayer, l.LayerID(), l.LayerID())
}
