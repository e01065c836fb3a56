package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

// DevToolsClient is a minimal Chrome DevTools protocol client: create a tab,
// issue request/response commands over the tab's websocket, close the tab.
// Protocol events are ignored; everything the driver needs is polled through
// Runtime.evaluate.
type DevToolsClient struct {
	baseURL  string
	targetID string
	conn     *websocket.Conn
	httpc    *http.Client

	mu      sync.Mutex
	nextID  int
	pending map[int]chan cdpResponse

	readErr  error
	readDone chan struct{}
}

type cdpRequest struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type cdpResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *cdpError       `json:"error"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *cdpError) Error() string {
	return fmt.Sprintf("devtools error %d: %s", e.Code, e.Message)
}

type devtoolsTarget struct {
	ID                   string `json:"id"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DialDevTools opens a fresh blank tab on a running Chrome instance and
// attaches to it. baseURL is the DevTools HTTP endpoint, e.g.
// http://127.0.0.1:9222.
func DialDevTools(ctx context.Context, baseURL string, httpc *http.Client) (*DevToolsClient, error) {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	// Chrome 111+ requires PUT for tab creation.
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, baseURL+"/json/new?about:blank", nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create devtools target: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("create devtools target: status %d: %s", resp.StatusCode, body)
	}
	var target devtoolsTarget
	if err := json.NewDecoder(resp.Body).Decode(&target); err != nil {
		return nil, fmt.Errorf("decode devtools target: %w", err)
	}
	if target.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("devtools target %s has no debugger url", target.ID)
	}

	conn, _, err := websocket.Dial(ctx, target.WebSocketDebuggerURL, nil)
	if err != nil {
		return nil, err
	}
	// Page snapshots and evaluate results can be large.
	conn.SetReadLimit(8 << 20)

	c := &DevToolsClient{
		baseURL:  baseURL,
		targetID: target.ID,
		conn:     conn,
		httpc:    httpc,
		pending:  map[int]chan cdpResponse{},
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *DevToolsClient) readLoop() {
	defer close(c.readDone)
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}
		var resp cdpResponse
		if err := json.Unmarshal(data, &resp); err != nil || resp.ID == 0 {
			// Protocol event or unparseable frame; not ours.
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// Call issues one protocol command and decodes its result into out (which may
// be nil when the result does not matter).
func (c *DevToolsClient) Call(ctx context.Context, method string, params any, out any) error {
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return fmt.Errorf("devtools connection lost: %w", err)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan cdpResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := json.Marshal(cdpRequest{ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("devtools connection closed during %s", method)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Result) > 0 {
			return json.Unmarshal(resp.Result, out)
		}
		return nil
	}
}

// Close tears the tab down: websocket first, then the target itself so the
// browser does not accumulate dead tabs.
func (c *DevToolsClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "released")
	<-c.readDone

	req, reqErr := http.NewRequest(http.MethodGet, c.baseURL+"/json/close/"+c.targetID, nil)
	if reqErr == nil {
		if resp, doErr := c.httpc.Do(req); doErr == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}
	return err
}
