package sink

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// display is the DisplaySink of spec §4.5.1: an OS window is not
// portable Go (no cross-platform GUI library appears anywhere in the
// retrieval pack), so it is rendered as a browser page fed over a
// websocket, the same coder/websocket broadcast idiom the pack's own
// browser-attached viewer uses. A "q" keystroke in the page sends a
// control message back that cancels the pipeline, preserving the
// spec's "keypress q cancels" behavior.
type display struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	server  *http.Server
	cancel  func()
}

const displayPage = `<!doctype html><html><body style="margin:0;background:#000">
<img id="f" style="width:100%;height:100%;object-fit:contain">
<script>
const img = document.getElementById('f');
const ws = new WebSocket('ws://' + location.host + '/ws');
ws.binaryType = 'arraybuffer';
ws.onmessage = (ev) => {
  const blob = new Blob([ev.data], {type: 'image/jpeg'});
  img.src = URL.createObjectURL(blob);
};
document.addEventListener('keydown', (ev) => {
  if (ev.key === 'q') { ws.send('q'); }
});
</script></body></html>`

func newDisplay(opts Options) (*display, error) {
	addr := opts.Addr
	if addr == "" {
		addr = ":8087"
	}
	d := &display{clients: map[*websocket.Conn]struct{}{}, cancel: opts.Cancel}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, displayPage)
	})
	mux.HandleFunc("/ws", d.handleWebSocket)
	d.server = &http.Server{Addr: addr, Handler: mux}
	go d.server.ListenAndServe()
	return d, nil
}

func (d *display) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	d.mu.Lock()
	d.clients[conn] = struct{}{}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.clients, conn)
		d.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()
	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if string(data) == "q" && d.cancel != nil {
			d.cancel()
			return
		}
	}
}

func (d *display) Write(ctx context.Context, f *frame.Frame) error {
	buf := f.Output
	if buf == nil {
		buf = f.Image
	}
	if buf == nil {
		return nil
	}
	data, err := rawimage.EncodeJPEG(buf, 85)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for conn := range d.clients {
		_ = conn.Write(ctx, websocket.MessageBinary, data)
	}
	return nil
}

func (d *display) Close() error {
	d.mu.Lock()
	for conn := range d.clients {
		conn.Close(websocket.StatusNormalClosure, "")
	}
	d.mu.Unlock()
	return d.server.Close()
}
