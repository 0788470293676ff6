package viz

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

// Server renders registered producers on a timer and serves the images as
// an auto-refreshing HTML page.
type Server struct {
	port           int
	updateInterval time.Duration
	srv            *http.Server

	mu        sync.RWMutex
	producers map[string]Producer
	images    map[string][]byte
}

func NewServer(port int, updateInterval time.Duration) *Server {
	return &Server{
		port:           port,
		updateInterval: updateInterval,
		srv:            &http.Server{Addr: fmt.Sprintf(":%d", port)},
		producers:      make(map[string]Producer),
		images:         make(map[string][]byte),
	}
}

func (s *Server) Register(p Producer) {
	s.mu.Lock()
	s.producers[p.Name()] = p
	s.mu.Unlock()
}

func (s *Server) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.producers))
	for name := range s.producers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) refresh() {
	s.mu.RLock()
	producers := make([]Producer, 0, len(s.producers))
	for _, p := range s.producers {
		producers = append(producers, p)
	}
	s.mu.RUnlock()

	for _, p := range producers {
		img, err := p.Render()
		if err != nil || img == nil {
			continue
		}
		s.mu.Lock()
		s.images[p.Name()] = img
		s.mu.Unlock()
	}
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		tick := time.NewTicker(s.updateInterval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				s.srv.Shutdown(context.Background())
				return
			case <-tick.C:
				s.refresh()
			}
		}
	}()

	handler := httprouter.New()
	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>soniclink</title></head><body bgcolor="black">`)
		fmt.Fprintf(w, `<script type="text/javascript">
			window.onload = function() {
				var imgs = document.getElementsByTagName('img');
				setInterval(function() {
					for (var i = 0; i < imgs.length; i++) {
						imgs[i].src = imgs[i].src.split("?")[0] + "?" + new Date().getTime();
					}
				}, %d);
			}
		</script>`, s.updateInterval.Milliseconds())
		for _, name := range s.names() {
			fmt.Fprintf(w, `<img src="/plot/%s" width="45%%"/>`, name)
		}
		fmt.Fprint(w, `</body></html>`)
	})
	handler.GET("/plot/:name", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		s.mu.RLock()
		img, ok := s.images[params.ByName("name")]
		s.mu.RUnlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	})

	s.srv.Handler = handler
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
