package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
)

// datastarURL is the Datastar client that opens the call stream.
const datastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// indexHTML lists the live maps and creates new ones.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>leafsync</title>
    <style>
        :root {
            --primary: #2563eb;
            --bg: #f8fafc;
            --card: #ffffff;
            --text: #1e293b;
            --text-muted: #64748b;
            --border: #e2e8f0;
            --radius: 8px;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.5;
        }
        .container { max-width: 800px; margin: 0 auto; padding: 1rem; }
        header { padding: 1.5rem 0; border-bottom: 1px solid var(--border); margin-bottom: 1.5rem; }
        header p { color: var(--text-muted); }
        .card {
            background: var(--card);
            border: 1px solid var(--border);
            border-radius: var(--radius);
            padding: 1rem;
            margin-bottom: 1rem;
        }
        form { display: flex; gap: 0.5rem; flex-wrap: wrap; }
        select, button { padding: 0.5rem 0.75rem; border-radius: var(--radius); border: 1px solid var(--border); }
        button { background: var(--primary); color: #fff; border: none; cursor: pointer; }
        ul { list-style: none; }
        li { padding: 0.5rem 0; border-bottom: 1px solid var(--border); }
        li:last-child { border-bottom: none; }
        .muted { color: var(--text-muted); font-size: 0.875rem; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>leafsync</h1>
            <p>Server-driven Leaflet maps</p>
        </header>
        <div class="card">
            <form id="create">
                <select id="preset"><option value="">No preset</option></select>
                <button type="submit">Create map</button>
            </form>
        </div>
        <div class="card">
            <ul id="maps"><li class="muted">Loading...</li></ul>
        </div>
    </div>
    <script>
        (function() {
            'use strict';

            function load() {
                fetch('/api/v1/maps').then(function(r) { return r.json(); }).then(function(body) {
                    var list = document.getElementById('maps');
                    list.innerHTML = '';
                    if (!body.maps || body.maps.length === 0) {
                        list.innerHTML = '<li class="muted">No maps yet</li>';
                        return;
                    }
                    body.maps.forEach(function(m) {
                        var li = document.createElement('li');
                        var a = document.createElement('a');
                        a.href = m.page || m.stream;
                        a.textContent = m.id;
                        li.appendChild(a);
                        var info = document.createElement('span');
                        info.className = 'muted';
                        info.textContent = ' ' + m.layers + ' layers, ' + m.markers + ' markers' +
                            (m.preset ? ', preset ' + m.preset : '') + (m.initialized ? '' : ', waiting for browser');
                        li.appendChild(info);
                        list.appendChild(li);
                    });
                });
            }

            fetch('/api/v1/presets').then(function(r) {
                return r.ok ? r.json() : { presets: [] };
            }).then(function(body) {
                var select = document.getElementById('preset');
                (body.presets || []).forEach(function(p) {
                    var opt = document.createElement('option');
                    opt.value = p.name;
                    opt.textContent = p.name;
                    select.appendChild(opt);
                });
            });

            document.getElementById('create').addEventListener('submit', function(e) {
                e.preventDefault();
                var preset = document.getElementById('preset').value;
                fetch('/api/v1/maps', {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: JSON.stringify(preset ? { preset: preset } : {})
                }).then(function(r) { return r.json(); }).then(function(m) {
                    if (m.page) {
                        window.location = m.page;
                    } else {
                        load();
                    }
                });
            });

            load();
        })();
    </script>
</body>
</html>`

// mapPageTemplate hosts one map. The Datastar client holds the call stream open
// and leafsync.js applies the calls to Leaflet.
var mapPageTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>leafsync {{.MapID}}</title>
    <link rel="stylesheet" href="{{.LeafletURL}}/leaflet.css">
    <style>
        html, body { height: 100%; margin: 0; }
        #leafsync-map { height: 100%; }
    </style>
    <script src="{{.LeafletURL}}/leaflet.js"></script>
    <script src="/leafsync.js" defer></script>
    <script type="module" src="{{.DatastarURL}}"></script>
</head>
<body>
    <div id="leafsync-map" data-map-id="{{.MapID}}" data-init="@get('{{.StreamURL}}', {openWhenHidden: true})"></div>
</body>
</html>`))

// shimJS binds the call stream to a Leaflet map and posts replies, events
// and the initialized signal back.
const shimJS = `(function() {
    'use strict';

    var root = document.getElementById('leafsync-map');
    if (!root) return;
    var base = '/api/v1/maps/' + encodeURIComponent(root.dataset.mapId);

    var map = null;
    var layers = {};
    var clusters = {};
    var backlog = [];

    var events = [
        'zoomlevelschange', 'resize', 'unload', 'viewreset', 'load', 'zoomstart',
        'movestart', 'zoom', 'move', 'zoomend', 'moveend',
        'click', 'dblclick', 'mousedown', 'mouseup', 'mouseover', 'mouseout',
        'mousemove', 'contextmenu', 'preclick',
        'keypress', 'keydown', 'keyup'
    ];

    function post(path, body) {
        return fetch(base + path, {
            method: 'POST',
            headers: { 'Content-Type': 'application/json' },
            body: body === undefined ? '' : JSON.stringify(body)
        });
    }

    function latLng(p) { return L.latLng(p.lat, p.lng); }
    function bounds(b) { return L.latLngBounds(latLng(b.southWest), latLng(b.northEast)); }
    function rings(shape) { return shape.map(function(r) { return r.map(latLng); }); }
    function point(p) { return p ? [p.x, p.y] : undefined; }
    function size(s) { return s ? [s.width, s.height] : undefined; }

    function boundsDoc(b) {
        return {
            southWest: { lat: b.getSouth(), lng: b.getWest() },
            northEast: { lat: b.getNorth(), lng: b.getEast() }
        };
    }

    function icon(i) {
        if (!i) return undefined;
        var sz = i.width && i.height ? [i.width, i.height] : undefined;
        var anchor = [i.anchorX || 0, i.anchorY || 0];
        if (i.isIconDiv) {
            return L.divIcon({ html: i.html, className: i.className, iconSize: sz, iconAnchor: anchor, bgPos: point(i.bgPos) });
        }
        return L.icon({
            iconUrl: i.url, iconRetinaUrl: i.retinaUrl, iconSize: sz, iconAnchor: anchor,
            popupAnchor: point(i.popupAnchor), tooltipAnchor: point(i.tooltipAnchor),
            shadowUrl: i.shadowUrl, shadowRetinaUrl: i.shadowRetinaUrl,
            shadowSize: size(i.shadowSize), shadowAnchor: size(i.shadowAnchor), className: i.className
        });
    }

    function decorate(layer, doc) {
        if (doc.popup && doc.popup.content != null) {
            layer.bindPopup(doc.popup.content, {
                maxWidth: doc.popup.maxWidth || 300, minWidth: doc.popup.minWidth || 50,
                closeButton: doc.popup.closeButton !== false
            });
        }
        if (doc.tooltip && doc.tooltip.content != null) {
            layer.bindTooltip(doc.tooltip.content, {
                direction: doc.tooltip.direction || 'auto', permanent: doc.tooltip.permanent,
                sticky: doc.tooltip.sticky, opacity: doc.tooltip.opacity || 0.9
            });
        }
        return layer;
    }

    function tileOptions(doc) {
        return {
            attribution: doc.attribution, minZoom: doc.minimumZoom, maxZoom: doc.maximumZoom,
            tileSize: doc.tileSize || 256, subdomains: doc.subdomains || 'abc', opacity: doc.opacity,
            zIndex: doc.zIndex, detectRetina: doc.detectRetina
        };
    }

    function heatPoints(doc) {
        return (doc.latLongs || []).map(function(p) { return [p.lat, p.lng]; });
    }

    function heatOptions(doc) {
        return { radius: doc.radius, minOpacity: doc.opacity / 255 };
    }

    var builders = {
        addTilelayer: function(doc) { return L.tileLayer(doc.urlTemplate, tileOptions(doc)); },
        addMbTilesLayer: function(doc) { return L.tileLayer(doc.url, tileOptions(doc)); },
        addShapefileLayer: function(doc) {
            var group = L.geoJSON(null, { style: doc });
            if (window.shp) {
                window.shp(doc.url).then(function(data) { group.addData(data); });
            }
            return group;
        },
        addMarker: function(doc) {
            return L.marker(latLng(doc.position), {
                icon: icon(doc.icon) || new L.Icon.Default(), title: doc.title, alt: doc.alt,
                opacity: doc.opacity, draggable: doc.draggable, keyboard: doc.keyboard,
                zIndexOffset: doc.zIndexOffset, riseOnHover: doc.riseOnHover
            });
        },
        addRectangle: function(doc) { return L.rectangle(bounds(doc.shape), doc); },
        addCircle: function(doc) { return L.circle(latLng(doc.position), L.extend({}, doc, { radius: doc.radius })); },
        addPolygon: function(doc) { return L.polygon(rings(doc.shape), doc); },
        addPolyline: function(doc) { return L.polyline(rings(doc.shape), doc); },
        addImageLayer: function(doc) {
            return L.imageOverlay(doc.url, L.latLngBounds(latLng(doc.corner1), latLng(doc.corner2)), {
                opacity: doc.opacity, alt: doc.alt, interactive: doc.interactive, zIndex: doc.zIndex
            });
        },
        addGeoJsonLayer: function(doc) { return L.geoJSON(doc.geoJsonData, { style: doc }); },
        addHeatLayer: function(doc) {
            if (!L.heatLayer) return L.layerGroup();
            return L.heatLayer(heatPoints(doc), heatOptions(doc));
        }
    };

    function cluster(id) {
        if (!clusters[id]) {
            clusters[id] = L.markerClusterGroup ? L.markerClusterGroup() : L.featureGroup();
            clusters[id].addTo(map);
        }
        return clusters[id];
    }

    function featureKey(feature) {
        if (feature.id != null) return String(feature.id);
        var props = feature.properties || {};
        return String(props.id != null ? props.id : props.name);
    }

    function forward(name) {
        var last = 0;
        map.on(name, function(e) {
            if (name === 'mousemove') {
                var now = Date.now();
                if (now - last < 100) return;
                last = now;
            }
            var body = { type: e.type };
            if (e.latlng) body.latlng = { lat: e.latlng.lat, lng: e.latlng.lng };
            if (e.layerPoint) body.layerPoint = { x: e.layerPoint.x, y: e.layerPoint.y };
            if (e.containerPoint) body.containerPoint = { x: e.containerPoint.x, y: e.containerPoint.y };
            if (e.oldSize) body.oldSize = { width: e.oldSize.x, height: e.oldSize.y };
            if (e.newSize) body.newSize = { width: e.newSize.x, height: e.newSize.y };
            post('/events/' + name, body);
        });
    }

    var methods = {
        create: function(opts) {
            if (map) {
                map.remove();
                layers = {};
                clusters = {};
            }
            map = L.map(root, {
                center: latLng(opts.center), zoom: opts.zoom,
                minZoom: opts.minZoom, maxZoom: opts.maxZoom,
                maxBounds: opts.maxBounds ? bounds(opts.maxBounds) : undefined,
                zoomControl: opts.zoomControl
            });
            events.forEach(forward);
            post('/initialized');
        },
        dispose: function() {
            map.remove();
            map = null;
            layers = {};
            clusters = {};
        },
        addMarkerToCluster: function(doc, clusterId) {
            var layer = decorate(builders.addMarker(doc), doc);
            layers[doc.id] = layer;
            cluster(clusterId).addLayer(layer);
        },
        removeLayer: function(id) {
            if (layers[id]) {
                map.removeLayer(layers[id]);
                delete layers[id];
            }
        },
        removeLayerFromCluster: function(id, clusterId) {
            if (layers[id]) {
                cluster(clusterId).removeLayer(layers[id]);
                delete layers[id];
            }
        },
        addMarkers: function(docs) {
            docs.forEach(function(doc) {
                var layer = decorate(builders.addMarker(doc), doc);
                if (doc.clusterId != null) {
                    cluster(doc.clusterId).addLayer(layer);
                } else {
                    layer.addTo(map);
                }
            });
        },
        updatePopupContent: function(id, content) {
            var layer = layers[id];
            if (!layer) return;
            if (content == null) layer.unbindPopup();
            else if (layer.getPopup()) layer.setPopupContent(content);
            else layer.bindPopup(content);
        },
        updateTooltipContent: function(id, content) {
            var layer = layers[id];
            if (!layer) return;
            if (content == null) layer.unbindTooltip();
            else if (layer.getTooltip()) layer.setTooltipContent(content);
            else layer.bindTooltip(content);
        },
        updateRectangle: function(doc) {
            layers[doc.id].setBounds(bounds(doc.shape));
            layers[doc.id].setStyle(doc);
        },
        updateCircle: function(doc) {
            layers[doc.id].setLatLng(latLng(doc.position));
            layers[doc.id].setRadius(doc.radius);
            layers[doc.id].setStyle(doc);
        },
        updatePolygon: function(doc) {
            layers[doc.id].setLatLngs(rings(doc.shape));
            layers[doc.id].setStyle(doc);
        },
        updatePolyline: function(doc) {
            layers[doc.id].setLatLngs(rings(doc.shape));
            layers[doc.id].setStyle(doc);
        },
        updateHeatOptions: function(doc) {
            var layer = layers[doc.id];
            if (!layer || !layer.setLatLngs) return;
            layer.setOptions(heatOptions(doc));
            layer.setLatLngs(heatPoints(doc));
        },
        styleGeoJsonLayerFeatures: function(id, colours) {
            var byKey = {};
            colours.forEach(function(pair) { byKey[pair[0]] = pair[1]; });
            layers[id].eachLayer(function(f) {
                var colour = byKey[featureKey(f.feature)];
                if (colour) f.setStyle({ color: colour, fillColor: colour });
            });
        },
        panTo: function(pos, animate, duration, easeLinearity, noMoveStart) {
            map.panTo(latLng(pos), { animate: animate, duration: duration, easeLinearity: easeLinearity, noMoveStart: noMoveStart });
        },
        flyTo: function(pos, zoom) { map.flyTo(latLng(pos), zoom); },
        flyToBounds: function(sw, ne, zoom) { map.flyToBounds(L.latLngBounds(latLng(sw), latLng(ne)), { maxZoom: zoom }); },
        fitBounds: function(sw, ne, padding, maxZoom) {
            map.fitBounds(L.latLngBounds(latLng(sw), latLng(ne)), { padding: point(padding), maxZoom: maxZoom == null ? undefined : maxZoom });
        },
        setMaxBounds: function(b) { map.setMaxBounds(bounds(b)); },
        setZoom: function(zoom) { map.setZoom(zoom); },
        zoomIn: function(mod) { map.zoomIn(mod && mod.shiftKey ? 3 : 1); },
        zoomOut: function(mod) { map.zoomOut(mod && mod.shiftKey ? 3 : 1); },
        invalidateSize: function(delay) { setTimeout(function() { map.invalidateSize(); }, delay || 0); },
        disableInteraction: function() {
            [map.dragging, map.touchZoom, map.doubleClickZoom, map.scrollWheelZoom, map.boxZoom, map.keyboard]
                .forEach(function(h) { if (h) h.disable(); });
        },
        enableInteraction: function() {
            [map.dragging, map.touchZoom, map.doubleClickZoom, map.scrollWheelZoom, map.boxZoom, map.keyboard]
                .forEach(function(h) { if (h) h.enable(); });
        },
        getCenter: function() {
            var c = map.getCenter();
            return { lat: c.lat, lng: c.lng };
        },
        getZoom: function() { return map.getZoom(); },
        getBounds: function() { return boundsDoc(map.getBounds()); },
        getLayerBounds: function(id) {
            var layer = layers[id];
            if (!layer || !layer.getBounds) throw new Error('layer ' + id + ' has no bounds');
            return boundsDoc(layer.getBounds());
        }
    };

    function add(method, doc, clusterId) {
        var layer = decorate(builders[method](doc), doc);
        layers[doc.id] = layer;
        if (clusterId != null) cluster(clusterId).addLayer(layer);
        else layer.addTo(map);
    }

    function apply(env) {
        var fn = methods[env.method];
        if (!fn && builders[env.method]) {
            fn = function(doc, clusterId) { add(env.method, doc, clusterId); };
        }
        try {
            if (!fn) throw new Error('unknown method ' + env.method);
            if (!map && env.method !== 'create') throw new Error('map not created');
            var result = fn.apply(null, env.args);
            if (env.await) {
                post('/replies/' + env.id, result === undefined ? {} : { result: result }).catch(function() {});
            }
        } catch (err) {
            if (env.await) {
                post('/replies/' + env.id, { error: String(err && err.message || err) }).catch(function() {});
            } else {
                console.error('leafsync: ' + env.method + ' failed', err);
            }
        }
    }

    document.addEventListener('leafsync-call', function(e) {
        var env = e.detail;
        if (!map && env.method !== 'create') {
            backlog.push(env);
            return;
        }
        apply(env);
        if (env.method === 'create') {
            // Calls queued before a replayed create belong to the old page.
            backlog.splice(0).forEach(function(stale) {
                if (stale.await) {
                    post('/replies/' + stale.id, { error: 'superseded by create' }).catch(function() {});
                }
            });
        }
    });
})();
`

// handleIndex serves the map overview page.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

// handleMapPage serves the host page of one map.
func (s *Server) handleMapPage(w http.ResponseWriter, r *http.Request) {
	m, ok := s.mapFor(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	err := mapPageTemplate.Execute(&buf, map[string]string{
		"MapID":       m.ID(),
		"LeafletURL":  s.config.LeafletURL,
		"DatastarURL": datastarURL,
		"StreamURL":   "/api/v1/maps/" + mux.Vars(r)["mapId"] + "/stream",
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleShim serves the browser side of the call stream.
func (s *Server) handleShim(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(shimJS))
}
