package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polismap/internal/feed"
)

// feedServer serves the four feed files for any world under
// /<server>/data/<feed>.txt. Worlds named in blocked stall until their
// channel is closed, after signalling arrival on started.
type feedServer struct {
	feeds   map[string]string
	blocked map[string]chan struct{}
	started chan string
}

func (fs *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[1] != "data" {
		http.NotFound(w, r)
		return
	}
	server, name := parts[0], strings.TrimSuffix(parts[2], ".txt")

	if block, ok := fs.blocked[server]; ok {
		select {
		case fs.started <- server:
		default:
		}
		<-block
	}

	text, ok := fs.feeds[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, text)
}

func testFeeds() map[string]string {
	return map[string]string{
		"players":   "1,Alice,,100,5,1\n",
		"alliances": "",
		"towns":     "1,1,Alpha,10,20,1,120\n",
		"islands":   "1,10,20,1,1,wood,iron\n",
	}
}

func testLoader(t *testing.T, fs *feedServer) (*Loader, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(fs)
	t.Cleanup(ts.Close)

	client := NewClient()
	client.BaseURL = ts.URL
	return NewLoader(client, feed.DefaultOffsets()), ts
}

func TestLoadInstallsStore(t *testing.T) {
	l, _ := testLoader(t, &feedServer{feeds: testFeeds()})

	require.Nil(t, l.Current(), "no store before the first load")

	store, err := l.Load(context.Background(), "de99")
	require.NoError(t, err)
	require.Same(t, store, l.Current())

	assert.Equal(t, "de99", store.Server())
	towns, players, _, islands := store.Counts()
	assert.Equal(t, 1, towns)
	assert.Equal(t, 1, players)
	assert.Equal(t, 1, islands)
}

func TestLoadFailsOnMissingFeed(t *testing.T) {
	feeds := testFeeds()
	delete(feeds, "towns")
	l, _ := testLoader(t, &feedServer{feeds: feeds})

	_, err := l.Load(context.Background(), "de99")
	require.Error(t, err)
	assert.Nil(t, l.Current(), "failed load must not install")
}

func TestLoadFailsOnUnparsableFeed(t *testing.T) {
	feeds := testFeeds()
	feeds["players"] = "1,Alice,,badpoints,5,1\n"
	l, _ := testLoader(t, &feedServer{feeds: feeds})

	_, err := l.Load(context.Background(), "de99")
	require.Error(t, err)
	var parseErr *feed.ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Nil(t, l.Current())
}

func TestLoadLastRequestWins(t *testing.T) {
	block := make(chan struct{})
	fs := &feedServer{
		feeds:   testFeeds(),
		blocked: map[string]chan struct{}{"slow": block},
		started: make(chan string, 8),
	}
	l, _ := testLoader(t, fs)

	slowDone := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), "slow")
		slowDone <- err
	}()

	// The slow load holds the older generation once its first request has
	// reached the server.
	<-fs.started

	fast, err := l.Load(context.Background(), "fast")
	require.NoError(t, err)
	require.Same(t, fast, l.Current())

	close(block)
	require.NoError(t, <-slowDone)

	assert.Same(t, fast, l.Current(), "superseded load must not replace the newer store")
	assert.Equal(t, "fast", l.Current().Server())
}

func TestLoadRawInstalls(t *testing.T) {
	l := NewLoader(NewClient(), feed.DefaultOffsets())

	raw := feed.Raw{
		Server:    "snapshot1",
		Players:   "1,Alice,,100,5,1\n",
		Alliances: "",
		Towns:     "1,1,Alpha,10,20,1,120\n",
		Islands:   "1,10,20,1,1,wood,iron\n",
	}
	store, err := l.LoadRaw(raw)
	require.NoError(t, err)
	assert.Same(t, store, l.Current())
	assert.Equal(t, "snapshot1", store.Server())
}
