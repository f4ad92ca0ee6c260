// Package memstore is the transactional in-memory reference implementation
// of the store.Store contract. All state lives behind one sync.RWMutex,
// mirroring a single shared state cell: every operation reads the current
// state, computes the new state, and commits before releasing the lock, so
// readers never observe a partial update and writes are fully serialized.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"iamcore/internal/iam"
	"iamcore/internal/store"
)

type pair [2]uuid.UUID

// Store is the in-memory reference implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	users    map[uuid.UUID]iam.User
	groups   map[uuid.UUID]iam.Group
	policies map[uuid.UUID]iam.Policy
	sessions map[uuid.UUID]iam.Session

	emailIndex      map[string]uuid.UUID
	groupNameIndex  map[string]uuid.UUID
	policyNameIndex map[string]uuid.UUID
	tokenIndex      map[string]uuid.UUID

	memberships   map[pair]struct{} // (uid, gid)
	userPolicies  map[pair]struct{} // (uid, pid)
	groupPolicies map[pair]struct{} // (gid, pid)

	now func() time.Time

	stopSweep chan struct{}
}

// New returns an empty store and starts its background expired-session
// sweeper. Call Close to stop the sweeper.
func New() *Store {
	s := &Store{
		users:           make(map[uuid.UUID]iam.User),
		groups:          make(map[uuid.UUID]iam.Group),
		policies:        make(map[uuid.UUID]iam.Policy),
		sessions:        make(map[uuid.UUID]iam.Session),
		emailIndex:      make(map[string]uuid.UUID),
		groupNameIndex:  make(map[string]uuid.UUID),
		policyNameIndex: make(map[string]uuid.UUID),
		tokenIndex:      make(map[string]uuid.UUID),
		memberships:     make(map[pair]struct{}),
		userPolicies:    make(map[pair]struct{}),
		groupPolicies:   make(map[pair]struct{}),
		now:             time.Now,
		stopSweep:       make(chan struct{}),
	}
	go s.sweepLoop(5 * time.Minute)
	return s
}

// Close stops the background sweeper. It does not clear stored state.
func (s *Store) Close() {
	close(s.stopSweep)
}

func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Store) sweepExpired() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.Before(sess.ExpiresAt) {
			continue
		}
		delete(s.sessions, id)
		delete(s.tokenIndex, sess.Token)
	}
}

func (s *Store) Users() store.UserStore             { return userStore{s} }
func (s *Store) Groups() store.GroupStore           { return groupStore{s} }
func (s *Store) Policies() store.PolicyStore        { return policyStore{s} }
func (s *Store) Memberships() store.MembershipStore { return membershipStore{s} }
func (s *Store) Attachments() store.AttachmentStore { return attachmentStore{s} }
func (s *Store) Sessions() store.SessionStore       { return sessionStore{s} }

// --- identifier resolution, called with s.mu already held ---

func (s *Store) resolveUserLocked(ident iam.UserIdentifier) (uuid.UUID, bool) {
	if ident.HasID() {
		_, ok := s.users[ident.ID()]
		return ident.ID(), ok
	}
	id, ok := s.emailIndex[ident.Email()]
	return id, ok
}

func (s *Store) resolveGroupLocked(ident iam.GroupIdentifier) (uuid.UUID, bool) {
	if ident.HasID() {
		_, ok := s.groups[ident.ID()]
		return ident.ID(), ok
	}
	id, ok := s.groupNameIndex[ident.Name()]
	return id, ok
}

func (s *Store) resolvePolicyLocked(ident iam.PolicyIdentifier) (uuid.UUID, bool) {
	if ident.HasID() {
		_, ok := s.policies[ident.ID()]
		return ident.ID(), ok
	}
	id, ok := s.policyNameIndex[ident.Name()]
	return id, ok
}

// hydrateUserLocked fills the derived Groups/Policies fields of a user
// record from the membership and attachment sets, so User.Groups and
// User.Policies are never stored redundantly on the record itself.
func (s *Store) hydrateUserLocked(u iam.User) iam.User {
	var groups, policies []uuid.UUID
	for p := range s.memberships {
		if p[0] == u.ID {
			groups = append(groups, p[1])
		}
	}
	for p := range s.userPolicies {
		if p[0] == u.ID {
			policies = append(policies, p[1])
		}
	}
	sortUUIDs(groups)
	sortUUIDs(policies)
	u.Groups = groups
	u.Policies = policies
	return u
}

func (s *Store) hydrateGroupLocked(g iam.Group) iam.Group {
	var users, policies []uuid.UUID
	for p := range s.memberships {
		if p[1] == g.ID {
			users = append(users, p[0])
		}
	}
	for p := range s.groupPolicies {
		if p[0] == g.ID {
			policies = append(policies, p[1])
		}
	}
	sortUUIDs(users)
	sortUUIDs(policies)
	g.Users = users
	g.Policies = policies
	return g
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}

// --- Users ---

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, user iam.User) (iam.User, error) {
	s := u.s
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return iam.User{}, iam.AlreadyExists("user", user.ID.String())
	}
	if user.Email != "" {
		if _, exists := s.emailIndex[user.Email]; exists {
			return iam.User{}, iam.AlreadyExists("user", user.Email)
		}
	}
	stored := user
	stored.Groups = nil
	stored.Policies = nil
	s.users[user.ID] = stored
	if user.Email != "" {
		s.emailIndex[user.Email] = user.ID
	}
	return s.hydrateUserLocked(stored), nil
}

func (u userStore) Get(_ context.Context, ident iam.UserIdentifier) (iam.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.resolveUserLocked(ident)
	if !ok {
		return iam.User{}, iam.NotFound("user", identString(ident))
	}
	return s.hydrateUserLocked(s.users[id]), nil
}

func (u userStore) ResolveID(_ context.Context, ident iam.UserIdentifier) (uuid.UUID, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.resolveUserLocked(ident)
	if !ok {
		return uuid.Nil, iam.NotFound("user", identString(ident))
	}
	return id, nil
}

func (u userStore) List(_ context.Context, offset, limit int) ([]iam.User, error) {
	s := u.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]iam.User, 0, len(s.users))
	for _, rec := range s.users {
		all = append(all, s.hydrateUserLocked(rec))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	return paginate(all, offset, limit), nil
}

func (u userStore) Delete(_ context.Context, ident iam.UserIdentifier) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.resolveUserLocked(ident)
	if !ok {
		return iam.NotFound("user", identString(ident))
	}
	rec := s.users[id]
	if rec.Email != "" {
		delete(s.emailIndex, rec.Email)
	}
	delete(s.users, id)
	for p := range s.memberships {
		if p[0] == id {
			delete(s.memberships, p)
		}
	}
	for p := range s.userPolicies {
		if p[0] == id {
			delete(s.userPolicies, p)
		}
	}
	for sid, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, sid)
			delete(s.tokenIndex, sess.Token)
		}
	}
	return nil
}

// --- Groups ---

type groupStore struct{ s *Store }

func (g groupStore) Create(_ context.Context, group iam.Group) (iam.Group, error) {
	s := g.s
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	group.CreatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.ID]; exists {
		return iam.Group{}, iam.AlreadyExists("group", group.ID.String())
	}
	if group.Name != "" {
		if _, exists := s.groupNameIndex[group.Name]; exists {
			return iam.Group{}, iam.AlreadyExists("group", group.Name)
		}
	}
	stored := group
	stored.Users = nil
	stored.Policies = nil
	s.groups[group.ID] = stored
	if group.Name != "" {
		s.groupNameIndex[group.Name] = group.ID
	}
	return s.hydrateGroupLocked(stored), nil
}

func (g groupStore) Get(_ context.Context, ident iam.GroupIdentifier) (iam.Group, error) {
	s := g.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.resolveGroupLocked(ident)
	if !ok {
		return iam.Group{}, iam.NotFound("group", identString(ident))
	}
	return s.hydrateGroupLocked(s.groups[id]), nil
}

func (g groupStore) ResolveID(_ context.Context, ident iam.GroupIdentifier) (uuid.UUID, error) {
	s := g.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.resolveGroupLocked(ident)
	if !ok {
		return uuid.Nil, iam.NotFound("group", identString(ident))
	}
	return id, nil
}

func (g groupStore) List(_ context.Context, offset, limit int) ([]iam.Group, error) {
	s := g.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]iam.Group, 0, len(s.groups))
	for _, rec := range s.groups {
		all = append(all, s.hydrateGroupLocked(rec))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	return paginate(all, offset, limit), nil
}

func (g groupStore) Delete(_ context.Context, ident iam.GroupIdentifier) error {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.resolveGroupLocked(ident)
	if !ok {
		return iam.NotFound("group", identString(ident))
	}
	rec := s.groups[id]
	if rec.Name != "" {
		delete(s.groupNameIndex, rec.Name)
	}
	delete(s.groups, id)
	for p := range s.memberships {
		if p[1] == id {
			delete(s.memberships, p)
		}
	}
	for p := range s.groupPolicies {
		if p[0] == id {
			delete(s.groupPolicies, p)
		}
	}
	return nil
}

// --- Policies ---

type policyStore struct{ s *Store }

func (p policyStore) Create(_ context.Context, policy iam.Policy) (iam.Policy, error) {
	s := p.s
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	policy.CreatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.policies[policy.ID]; exists {
		return iam.Policy{}, iam.AlreadyExists("policy", policy.ID.String())
	}
	if policy.Name != "" {
		if _, exists := s.policyNameIndex[policy.Name]; exists {
			return iam.Policy{}, iam.AlreadyExists("policy", policy.Name)
		}
	}
	s.policies[policy.ID] = policy
	if policy.Name != "" {
		s.policyNameIndex[policy.Name] = policy.ID
	}
	return policy, nil
}

func (p policyStore) Get(_ context.Context, ident iam.PolicyIdentifier) (iam.Policy, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.resolvePolicyLocked(ident)
	if !ok {
		return iam.Policy{}, iam.NotFound("policy", identString(ident))
	}
	return s.policies[id], nil
}

func (p policyStore) Update(_ context.Context, policy iam.Policy) (iam.Policy, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.policies[policy.ID]
	if !ok {
		return iam.Policy{}, iam.NotFound("policy", policy.ID.String())
	}
	if policy.Name != existing.Name {
		if policy.Name != "" {
			if _, taken := s.policyNameIndex[policy.Name]; taken {
				return iam.Policy{}, iam.AlreadyExists("policy", policy.Name)
			}
		}
		if existing.Name != "" {
			delete(s.policyNameIndex, existing.Name)
		}
		if policy.Name != "" {
			s.policyNameIndex[policy.Name] = policy.ID
		}
	}
	policy.CreatedAt = existing.CreatedAt
	s.policies[policy.ID] = policy
	return policy, nil
}

func (p policyStore) List(_ context.Context, offset, limit int) ([]iam.Policy, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]iam.Policy, 0, len(s.policies))
	for _, rec := range s.policies {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	return paginate(all, offset, limit), nil
}

func (p policyStore) Delete(_ context.Context, ident iam.PolicyIdentifier) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.resolvePolicyLocked(ident)
	if !ok {
		return iam.NotFound("policy", identString(ident))
	}
	rec := s.policies[id]
	if rec.Name != "" {
		delete(s.policyNameIndex, rec.Name)
	}
	delete(s.policies, id)
	for pr := range s.userPolicies {
		if pr[1] == id {
			delete(s.userPolicies, pr)
		}
	}
	for pr := range s.groupPolicies {
		if pr[1] == id {
			delete(s.groupPolicies, pr)
		}
	}
	return nil
}

func (p policyStore) ListForUser(_ context.Context, uid uuid.UUID, host string) ([]iam.Policy, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	var out []iam.Policy

	add := func(pid uuid.UUID) {
		if _, ok := seen[pid]; ok {
			return
		}
		policy, ok := s.policies[pid]
		if !ok || policy.Hostname != host {
			return
		}
		seen[pid] = struct{}{}
		out = append(out, policy)
	}

	for pr := range s.userPolicies {
		if pr[0] == uid {
			add(pr[1])
		}
	}
	for m := range s.memberships {
		if m[0] != uid {
			continue
		}
		for pr := range s.groupPolicies {
			if pr[0] == m[1] {
				add(pr[1])
			}
		}
	}
	return out, nil
}

// --- Memberships ---

type membershipStore struct{ s *Store }

func (m membershipStore) Create(_ context.Context, uident iam.UserIdentifier, gident iam.GroupIdentifier) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.resolveUserLocked(uident)
	if !ok {
		return iam.NotFound("user", identString(uident))
	}
	gid, ok := s.resolveGroupLocked(gident)
	if !ok {
		return iam.NotFound("group", identString(gident))
	}
	key := pair{uid, gid}
	if _, exists := s.memberships[key]; exists {
		return iam.AlreadyExists("membership", key[0].String()+"/"+key[1].String())
	}
	s.memberships[key] = struct{}{}
	return nil
}

func (m membershipStore) Delete(_ context.Context, uident iam.UserIdentifier, gident iam.GroupIdentifier) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.resolveUserLocked(uident)
	if !ok {
		return iam.NotFound("user", identString(uident))
	}
	gid, ok := s.resolveGroupLocked(gident)
	if !ok {
		return iam.NotFound("group", identString(gident))
	}
	key := pair{uid, gid}
	if _, exists := s.memberships[key]; !exists {
		return iam.NotFound("membership", key[0].String()+"/"+key[1].String())
	}
	delete(s.memberships, key)
	return nil
}

// --- Attachments ---

type attachmentStore struct{ s *Store }

func (a attachmentStore) CreateUserPolicy(_ context.Context, uident iam.UserIdentifier, pident iam.PolicyIdentifier) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.resolveUserLocked(uident)
	if !ok {
		return iam.NotFound("user", identString(uident))
	}
	pid, ok := s.resolvePolicyLocked(pident)
	if !ok {
		return iam.NotFound("policy", identString(pident))
	}
	key := pair{uid, pid}
	if _, exists := s.userPolicies[key]; exists {
		return iam.AlreadyExists("user-policy-attachment", key[0].String()+"/"+key[1].String())
	}
	s.userPolicies[key] = struct{}{}
	return nil
}

func (a attachmentStore) DeleteUserPolicy(_ context.Context, uident iam.UserIdentifier, pident iam.PolicyIdentifier) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.resolveUserLocked(uident)
	if !ok {
		return iam.NotFound("user", identString(uident))
	}
	pid, ok := s.resolvePolicyLocked(pident)
	if !ok {
		return iam.NotFound("policy", identString(pident))
	}
	key := pair{uid, pid}
	if _, exists := s.userPolicies[key]; !exists {
		return iam.NotFound("user-policy-attachment", key[0].String()+"/"+key[1].String())
	}
	delete(s.userPolicies, key)
	return nil
}

func (a attachmentStore) CreateGroupPolicy(_ context.Context, gident iam.GroupIdentifier, pident iam.PolicyIdentifier) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	gid, ok := s.resolveGroupLocked(gident)
	if !ok {
		return iam.NotFound("group", identString(gident))
	}
	pid, ok := s.resolvePolicyLocked(pident)
	if !ok {
		return iam.NotFound("policy", identString(pident))
	}
	key := pair{gid, pid}
	if _, exists := s.groupPolicies[key]; exists {
		return iam.AlreadyExists("group-policy-attachment", key[0].String()+"/"+key[1].String())
	}
	s.groupPolicies[key] = struct{}{}
	return nil
}

func (a attachmentStore) DeleteGroupPolicy(_ context.Context, gident iam.GroupIdentifier, pident iam.PolicyIdentifier) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	gid, ok := s.resolveGroupLocked(gident)
	if !ok {
		return iam.NotFound("group", identString(gident))
	}
	pid, ok := s.resolvePolicyLocked(pident)
	if !ok {
		return iam.NotFound("policy", identString(pident))
	}
	key := pair{gid, pid}
	if _, exists := s.groupPolicies[key]; !exists {
		return iam.NotFound("group-policy-attachment", key[0].String()+"/"+key[1].String())
	}
	delete(s.groupPolicies, key)
	return nil
}

// --- Sessions ---

type sessionStore struct{ s *Store }

func (sess sessionStore) Create(_ context.Context, uid uuid.UUID, ttl time.Duration) (iam.Session, error) {
	s := sess.s

	s.mu.RLock()
	_, exists := s.users[uid]
	s.mu.RUnlock()
	if !exists {
		return iam.Session{}, iam.NotFound("user", uid.String())
	}

	// Randomness and id generation happen outside the lock per the
	// no-I/O-and-no-RNG-inside-the-transaction discipline.
	token, err := iam.NewSessionToken()
	if err != nil {
		return iam.Session{}, iam.Internal(err)
	}
	sid := uuid.New()
	now := s.now()
	rec := iam.Session{
		ID:        sid,
		UserID:    uid,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[uid]; !exists {
		return iam.Session{}, iam.NotFound("user", uid.String())
	}
	s.sessions[sid] = rec
	s.tokenIndex[token] = sid
	return rec, nil
}

func (sess sessionStore) GetByID(_ context.Context, uid, sid uuid.UUID) (iam.Session, error) {
	s := sess.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sid]
	if !ok || rec.UserID != uid || rec.Expired(s.now()) {
		return iam.Session{}, iam.NotFound("session", sid.String())
	}
	return rec, nil
}

func (sess sessionStore) GetByToken(_ context.Context, uid uuid.UUID, token string) (iam.Session, error) {
	s := sess.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	sid, ok := s.tokenIndex[token]
	if !ok {
		return iam.Session{}, iam.NotFound("session", token)
	}
	rec := s.sessions[sid]
	if rec.UserID != uid || rec.Expired(s.now()) {
		return iam.Session{}, iam.NotFound("session", token)
	}
	return rec, nil
}

func (sess sessionStore) Refresh(_ context.Context, uid, sid uuid.UUID, ttl time.Duration) (iam.Session, error) {
	s := sess.s
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sid]
	if !ok || rec.UserID != uid || rec.Expired(s.now()) {
		return iam.Session{}, iam.NotFound("session", sid.String())
	}
	rec.ExpiresAt = s.now().Add(ttl)
	s.sessions[sid] = rec
	return rec, nil
}

func (sess sessionStore) Delete(_ context.Context, uid, sid uuid.UUID) error {
	s := sess.s
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sid]
	if !ok || rec.UserID != uid {
		return iam.NotFound("session", sid.String())
	}
	delete(s.sessions, sid)
	delete(s.tokenIndex, rec.Token)
	return nil
}

func (sess sessionStore) List(_ context.Context, uid uuid.UUID, offset, limit int) ([]iam.Session, error) {
	s := sess.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var all []iam.Session
	for _, rec := range s.sessions {
		if rec.UserID != uid || rec.Expired(now) {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, offset, limit), nil
}

// --- helpers ---

func paginate[T any](all []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

func identString(ident interface{ HasID() bool }) string {
	switch v := ident.(type) {
	case iam.UserIdentifier:
		if v.HasID() {
			return v.ID().String()
		}
		return v.Email()
	case iam.GroupIdentifier:
		if v.HasID() {
			return v.ID().String()
		}
		return v.Name()
	case iam.PolicyIdentifier:
		if v.HasID() {
			return v.ID().String()
		}
		return v.Name()
	default:
		return ""
	}
}
