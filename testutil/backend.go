package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/iksnae/hdt-console/internal"
)

const fakeSecret = "fake-backend-secret"

// RecordedRequest is a request seen by the fake backend
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	RequestID     string
	Body          map[string]any
}

type fakeFailure struct {
	status  int
	message string
}

type fakeUser struct {
	user     internal.User
	password string
}

type fakeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// send writes one raw Engine.IO frame
func (c *fakeConn) send(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// write emits a Socket.IO event as 42["event",data]
func (c *fakeConn) write(event string, data any) error {
	body, err := json.Marshal([]any{event, data})
	if err != nil {
		return err
	}
	return c.send("42" + string(body))
}

// FakeBackend is an in-memory stand-in for the HDT backend: the REST
// surface under /api, /health and the Socket.IO event channel mounted at
// /socket.io/ (websocket transport only)
type FakeBackend struct {
	Server *httptest.Server

	mu        sync.Mutex
	requests  []RecordedRequest
	failures  map[string]fakeFailure
	users     map[string]*fakeUser
	profiles  []internal.Profile
	sessions  map[int]*internal.Session
	samples   []map[string]any
	activity  []map[string]any
	tasks     []internal.Task
	chat      map[int][]internal.ChatMessage
	conns     []*fakeConn
	wsEvents  []string
	pongs     int
	nextID    int
	chatReply string
	unhealthy bool
	upgrader  websocket.Upgrader
}

// NewFakeBackend starts a fake backend that is shut down with the test
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		failures:  make(map[string]fakeFailure),
		users:     make(map[string]*fakeUser),
		sessions:  make(map[int]*internal.Session),
		chat:      make(map[int][]internal.ChatMessage),
		nextID:    1,
		chatReply: "Here you go:\n```python\nprint('hello')\n```",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", f.register)
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("GET /api/auth/me", f.authed(f.me))
	mux.HandleFunc("GET /api/hdt/profiles", f.authed(f.listProfiles))
	mux.HandleFunc("POST /api/hdt/profiles", f.authed(f.createProfile))
	mux.HandleFunc("GET /api/hdt/roles", f.roles)
	mux.HandleFunc("POST /api/sessions/start", f.authed(f.startSession))
	mux.HandleFunc("POST /api/sessions/{id}/end", f.authed(f.endSession))
	mux.HandleFunc("GET /api/sessions", f.authed(f.listSessions))
	mux.HandleFunc("POST /api/monitoring/physiological", f.authed(f.physiological))
	mux.HandleFunc("POST /api/monitoring/work-activity", f.authed(f.workActivity))
	mux.HandleFunc("GET /api/monitoring/current-state/{id}", f.authed(f.currentState))
	mux.HandleFunc("POST /api/tasks", f.authed(f.createTask))
	mux.HandleFunc("GET /api/tasks", f.authed(f.listTasks))
	mux.HandleFunc("POST /api/chat", f.authed(f.sendChat))
	mux.HandleFunc("GET /api/chat/history/{id}", f.authed(f.chatHistory))
	mux.HandleFunc("GET /health", f.health)
	mux.HandleFunc("GET /socket.io/", f.socketIO)

	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Close)
	return f
}

// Close drops websocket connections and stops the server
func (f *FakeBackend) Close() {
	f.DropConnections()
	f.Server.Close()
}

// APIURL returns the REST base URL
func (f *FakeBackend) APIURL() string {
	return f.Server.URL + "/api"
}

// WSURL returns the event channel URL
func (f *FakeBackend) WSURL() string {
	return "ws" + strings.TrimPrefix(f.Server.URL, "http") + "/socket.io/"
}

// Fail makes every request to path (without the /api prefix) answer with
// status and message. An empty message sends no error body.
func (f *FakeBackend) Fail(path string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = fakeFailure{status: status, message: message}
}

// ClearFailures removes every failure set with Fail
func (f *FakeBackend) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[string]fakeFailure)
}

// SetChatReply sets the assistant's reply text
func (f *FakeBackend) SetChatReply(reply string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatReply = reply
}

// SetUnhealthy makes /health report 503
func (f *FakeBackend) SetUnhealthy(unhealthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhealthy = unhealthy
}

// Requests returns the requests seen for path (without the /api prefix)
func (f *FakeBackend) Requests(path string) []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RecordedRequest
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// RequestCount returns the number of requests to path
func (f *FakeBackend) RequestCount(path string) int {
	return len(f.Requests(path))
}

// TotalRequests returns the number of REST requests seen
func (f *FakeBackend) TotalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Samples returns the uploaded physiological payloads
func (f *FakeBackend) Samples() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.samples...)
}

// Session returns a session by id
func (f *FakeBackend) Session(id int) *internal.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// WebsocketEvents returns the names of events received on the channel
func (f *FakeBackend) WebsocketEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.wsEvents...)
}

// Broadcast sends an event to every connected websocket client
func (f *FakeBackend) Broadcast(event string, data any) {
	f.mu.Lock()
	conns := append([]*fakeConn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		_ = c.write(event, data)
	}
}

// Ping sends an Engine.IO ping to every connected client
func (f *FakeBackend) Ping() {
	f.mu.Lock()
	conns := append([]*fakeConn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		_ = c.send("2")
	}
}

// Pongs returns the number of pong packets received
func (f *FakeBackend) Pongs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pongs
}

// DropConnections closes every websocket connection
func (f *FakeBackend) DropConnections() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		_ = c.conn.Close()
	}
}

// SeedUser registers a user directly and returns a valid token for it
func (f *FakeBackend) SeedUser(username, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.addUserLocked(username, username+"@example.com", password, "")
	return issueToken(u.user.UserID)
}

func (f *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		if r.URL.Path == "/socket.io/" {
			next.ServeHTTP(w, r)
			return
		}
		var body map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method:        r.Method,
			Path:          path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          body,
		})
		failure, failing := f.failures[path]
		f.mu.Unlock()

		if failing {
			if failure.message == "" {
				w.WriteHeader(failure.status)
				return
			}
			writeJSON(w, failure.status, map[string]string{"error": failure.message})
			return
		}
		ctx := withBody(r.Context(), body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (f *FakeBackend) authed(h func(w http.ResponseWriter, r *http.Request, userID int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token is missing"})
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(*jwt.Token) (any, error) {
			return []byte(fakeSecret), nil
		})
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}
		id, _ := claims["user_id"].(float64)
		h(w, r, int(id))
	}
}

func (f *FakeBackend) register(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r)
	username, _ := body["username"].(string)
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)
	fullName, _ := body["full_name"].(string)
	if username == "" || email == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
		return
	}

	f.mu.Lock()
	if _, exists := f.users[username]; exists {
		f.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username already exists"})
		return
	}
	u := f.addUserLocked(username, email, password, fullName)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully", "user": u.user})
}

func (f *FakeBackend) addUserLocked(username, email, password, fullName string) *fakeUser {
	u := &fakeUser{
		user: internal.User{
			UserID:    f.nextID,
			Username:  username,
			Email:     email,
			FullName:  fullName,
			CreatedAt: time.Now().Format("2006-01-02T15:04:05"),
			IsActive:  true,
		},
		password: password,
	}
	f.nextID++
	f.users[username] = u
	return u
}

func (f *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	body := bodyOf(r)
	username, _ := body["username"].(string)
	password, _ := body["password"].(string)

	f.mu.Lock()
	u, ok := f.users[username]
	f.mu.Unlock()
	if !ok || u.password != password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": issueToken(u.user.UserID), "user": u.user})
}

func (f *FakeBackend) me(w http.ResponseWriter, r *http.Request, userID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.user.UserID == userID {
			writeJSON(w, http.StatusOK, map[string]any{"user": u.user})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
}

func (f *FakeBackend) listProfiles(w http.ResponseWriter, r *http.Request, userID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []internal.Profile{}
	for _, p := range f.profiles {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
}

func (f *FakeBackend) createProfile(w http.ResponseWriter, r *http.Request, userID int) {
	body := bodyOf(r)
	roleType, _ := body["role_type"].(string)
	role := internal.Role(roleType)
	if !role.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid role type"})
		return
	}
	displayName, _ := body["display_name"].(string)
	if displayName == "" {
		displayName = role.Title()
	}

	f.mu.Lock()
	p := internal.Profile{
		ProfileID:       f.nextID,
		UserID:          userID,
		RoleType:        role,
		DisplayName:     displayName,
		AvatarModelPath: "models/avatars/" + roleType + ".fbx",
		Capabilities:    capabilities(role),
	}
	f.nextID++
	f.profiles = append(f.profiles, p)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Profile created successfully", "profile": p})
}

func (f *FakeBackend) roles(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}
	for _, role := range internal.Roles {
		out[string(role)] = capabilities(role)
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (f *FakeBackend) startSession(w http.ResponseWriter, r *http.Request, userID int) {
	body := bodyOf(r)
	profileID, _ := body["profile_id"].(float64)

	f.mu.Lock()
	found := false
	for _, p := range f.profiles {
		if p.ProfileID == int(profileID) && p.UserID == userID {
			found = true
		}
	}
	if !found {
		f.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Profile not found"})
		return
	}
	s := &internal.Session{
		SessionID: f.nextID,
		UserID:    userID,
		ProfileID: int(profileID),
		StartTime: time.Now().Format("2006-01-02T15:04:05.000000"),
		IsActive:  true,
	}
	f.nextID++
	f.sessions[s.SessionID] = s
	cp := *s
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Session started successfully", "session": cp})
}

func (f *FakeBackend) endSession(w http.ResponseWriter, r *http.Request, userID int) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	f.mu.Lock()
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		f.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	s.IsActive = false
	s.EndTime = time.Now().Format("2006-01-02T15:04:05.000000")
	duration := 0
	s.SessionDuration = &duration
	cp := *s
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"message": "Session ended successfully", "session": cp})
}

func (f *FakeBackend) listSessions(w http.ResponseWriter, r *http.Request, userID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []internal.Session{}
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (f *FakeBackend) physiological(w http.ResponseWriter, r *http.Request, userID int) {
	body := bodyOf(r)
	f.mu.Lock()
	f.samples = append(f.samples, body)
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Data recorded", "data": body})
}

func (f *FakeBackend) workActivity(w http.ResponseWriter, r *http.Request, userID int) {
	body := bodyOf(r)
	f.mu.Lock()
	f.activity = append(f.activity, body)
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Activity recorded", "activity": body})
}

func (f *FakeBackend) currentState(w http.ResponseWriter, r *http.Request, userID int) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	f.mu.Lock()
	defer f.mu.Unlock()
	var physio, activity any
	for i := len(f.samples) - 1; i >= 0; i-- {
		if sid, _ := f.samples[i]["session_id"].(float64); int(sid) == id {
			physio = f.samples[i]
			break
		}
	}
	for i := len(f.activity) - 1; i >= 0; i-- {
		if sid, _ := f.activity[i]["session_id"].(float64); int(sid) == id {
			activity = f.activity[i]
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"physiological": physio, "activity": activity})
}

func (f *FakeBackend) createTask(w http.ResponseWriter, r *http.Request, userID int) {
	body := bodyOf(r)
	command, _ := body["command"].(string)
	sessionID, _ := body["session_id"].(float64)
	taskType, _ := body["task_type"].(string)
	if taskType == "" {
		taskType = "general"
	}

	f.mu.Lock()
	task := internal.Task{
		TaskID:      f.nextID,
		SessionID:   int(sessionID),
		TaskType:    taskType,
		CommandText: command,
		TaskStatus:  "completed",
		Priority:    5,
		ResultData:  map[string]any{"response": "done: " + command},
	}
	f.nextID++
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Task completed", "task": task})
}

func (f *FakeBackend) listTasks(w http.ResponseWriter, r *http.Request, userID int) {
	sessionID, _ := strconv.Atoi(r.URL.Query().Get("session_id"))
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []internal.Task{}
	for _, t := range f.tasks {
		if sessionID == 0 || t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (f *FakeBackend) sendChat(w http.ResponseWriter, r *http.Request, userID int) {
	body := bodyOf(r)
	message, _ := body["message"].(string)
	sessionID, _ := body["session_id"].(float64)

	f.mu.Lock()
	reply := f.chatReply
	now := time.Now().Format("2006-01-02T15:04:05")
	f.chat[int(sessionID)] = append(f.chat[int(sessionID)],
		internal.ChatMessage{InteractionID: f.nextID, Role: "user", MessageText: message, Timestamp: now},
		internal.ChatMessage{InteractionID: f.nextID + 1, Role: "assistant", MessageText: reply, Timestamp: now},
	)
	f.nextID += 2
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"response": reply, "success": true})
}

func (f *FakeBackend) chatHistory(w http.ResponseWriter, r *http.Request, userID int) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.chat[id]
	if msgs == nil {
		msgs = []internal.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (f *FakeBackend) health(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	unhealthy := f.unhealthy
	f.mu.Unlock()
	if unhealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "disconnected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().Format("2006-01-02T15:04:05"),
	})
}

func (f *FakeBackend) socketIO(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != "4" || q.Get("transport") != "websocket" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 0, "message": "Transport unknown"})
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fc := &fakeConn{conn: conn}

	f.mu.Lock()
	sid := fmt.Sprintf("sid-%d", f.nextID)
	f.nextID++
	f.mu.Unlock()

	open := fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`, sid)
	if err := fc.send(open); err != nil {
		_ = conn.Close()
		return
	}
	_, frame, err := conn.ReadMessage()
	if err != nil || !strings.HasPrefix(string(frame), "40") {
		_ = conn.Close()
		return
	}
	_ = fc.send(fmt.Sprintf(`40{"sid":%q}`, sid))

	f.mu.Lock()
	f.conns = append(f.conns, fc)
	f.mu.Unlock()

	_ = fc.write("connection_response", map[string]string{"status": "connected"})
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		packet := string(frame)
		switch {
		case packet == "3":
			f.mu.Lock()
			f.pongs++
			f.mu.Unlock()
		case packet == "41":
			_ = conn.Close()
			return
		case strings.HasPrefix(packet, "42"):
			f.handleEvent(fc, frame[2:])
		}
	}
}

func (f *FakeBackend) handleEvent(fc *fakeConn, body []byte) {
	var args []json.RawMessage
	if err := json.Unmarshal(body, &args); err != nil || len(args) == 0 {
		return
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return
	}
	var data map[string]any
	if len(args) > 1 {
		_ = json.Unmarshal(args[1], &data)
	}

	f.mu.Lock()
	f.wsEvents = append(f.wsEvents, name)
	f.mu.Unlock()

	switch name {
	case "subscribe_session":
		_ = fc.write("subscription_confirmed", map[string]any{"session_id": data["session_id"]})
	case "physiological_update":
		f.Broadcast("physiological_data", data)
	case "activity_update":
		f.Broadcast("activity_data", data)
	}
}

func capabilities(role internal.Role) *internal.RoleCapabilities {
	switch role {
	case internal.RoleOfficeWorker:
		return &internal.RoleCapabilities{
			Tasks:       []string{"document_creation", "data_analysis", "email_drafting", "meeting_scheduling", "report_generation"},
			Tools:       []string{"Documents", "Spreadsheets", "Presentations"},
			Description: "Office productivity and administrative tasks",
		}
	case internal.RoleFactoryWorker:
		return &internal.RoleCapabilities{
			Tasks:       []string{"safety_monitoring", "equipment_guidance", "performance_insights", "maintenance_scheduling", "incident_reporting"},
			Focus:       []string{"Safety", "Efficiency", "Training"},
			Description: "Factory and field work support",
		}
	default:
		return &internal.RoleCapabilities{
			Tasks:       []string{"code_generation", "debugging", "documentation", "code_review", "tutorial"},
			Languages:   []string{"Python", "JavaScript", "HTML", "CSS"},
			Description: "Software development and coding assistance",
		}
	}
}

// IssueToken returns a token the fake backend accepts for userID
func IssueToken(userID int) string {
	return issueToken(userID)
}

func issueToken(userID int) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}).SignedString([]byte(fakeSecret))
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
