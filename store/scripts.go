package store

import (
	"context"
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	goredis "github.com/redis/go-redis/v9"
)

// Script names.
const (
	ScriptInvalidate = "invalidate"
	ScriptLock       = "lock"
	ScriptUnlock     = "unlock"
	ScriptInstall    = "install"
)

//go:embed lua/*.lua
var luaFS embed.FS

var bodies = func() map[string]string {
	entries, err := luaFS.ReadDir("lua")
	if err != nil {
		panic(err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		b, err := luaFS.ReadFile(path.Join("lua", e.Name()))
		if err != nil {
			panic(err)
		}
		out[strings.TrimSuffix(e.Name(), ".lua")] = string(b)
	}
	return out
}()

// Scripts registers the compiled-in Lua scripts on first use and runs them
// by SHA. Safe for concurrent use; registering twice yields the same SHA.
type Scripts struct {
	rdb  goredis.UniversalClient
	shas *xsync.MapOf[string, string]
}

func NewScripts(rdb goredis.UniversalClient) *Scripts {
	return &Scripts{rdb: rdb, shas: xsync.NewMapOf[string, string]()}
}

// Names lists the available scripts.
func (s *Scripts) Names() []string {
	out := make([]string, 0, len(bodies))
	for name := range bodies {
		out = append(out, name)
	}
	return out
}

func (s *Scripts) sha(ctx context.Context, name string) (string, error) {
	if sha, ok := s.shas.Load(name); ok {
		return sha, nil
	}
	body, ok := bodies[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScript, name)
	}
	sha, err := s.rdb.ScriptLoad(ctx, body).Result()
	if err != nil {
		return "", err
	}
	actual, _ := s.shas.LoadOrStore(name, sha)
	return actual, nil
}

// Eval runs script name. A redis.Nil reply is returned as the error, like
// any go-redis command. Server-side failures come back as *ScriptError.
func (s *Scripts) Eval(ctx context.Context, name string, keys []string, args ...any) (any, error) {
	sha, err := s.sha(ctx, name)
	if err != nil {
		return nil, err
	}
	res, err := s.rdb.EvalSha(ctx, sha, keys, args...).Result()
	if isNoScript(err) {
		// script cache was flushed (restart, SCRIPT FLUSH); register again
		s.shas.Delete(name)
		if sha, err = s.sha(ctx, name); err != nil {
			return nil, err
		}
		res, err = s.rdb.EvalSha(ctx, sha, keys, args...).Result()
	}
	if err != nil && isServerErr(err) {
		return nil, &ScriptError{Script: name, Err: err}
	}
	return res, err
}
