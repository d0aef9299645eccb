package router

import (
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
)

// A feature module implements any of these. PublicModule routes skip
// authentication; APIModule routes sit behind a user token and AdminModule
// routes behind an admin token.
type PublicModule interface{ MountPublic(*gin.RouterGroup) }
type APIModule interface{ MountAPI(*gin.RouterGroup) }
type AdminModule interface{ MountAdmin(*gin.RouterGroup) }

// GuardModule contributes middleware that runs after token checks on every
// authenticated group.
type GuardModule interface{ Guard() gin.HandlerFunc }

// Modules mount in ascending priority; the default is 100.
type prioritizer interface{ Priority() int }

// Registry collects feature modules for the engines.
type Registry struct {
	mu   sync.RWMutex
	mods []any
}

func (r *Registry) Register(mods ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods = append(r.mods, mods...)
}

func (r *Registry) sorted() []any {
	r.mu.RLock()
	mods := append([]any(nil), r.mods...)
	r.mu.RUnlock()
	sort.SliceStable(mods, func(i, j int) bool { return priorityOf(mods[i]) < priorityOf(mods[j]) })
	return mods
}

func (r *Registry) MountPublic(g *gin.RouterGroup) {
	for _, m := range r.sorted() {
		if p, ok := m.(PublicModule); ok {
			p.MountPublic(g)
		}
	}
}

func (r *Registry) MountAPI(g *gin.RouterGroup) {
	for _, m := range r.sorted() {
		if p, ok := m.(APIModule); ok {
			p.MountAPI(g)
		}
	}
}

func (r *Registry) MountAdmin(g *gin.RouterGroup) {
	for _, m := range r.sorted() {
		if p, ok := m.(AdminModule); ok {
			p.MountAdmin(g)
		}
	}
}

func (r *Registry) Guards() []gin.HandlerFunc {
	var hs []gin.HandlerFunc
	for _, m := range r.sorted() {
		if p, ok := m.(GuardModule); ok {
			hs = append(hs, p.Guard())
		}
	}
	return hs
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
