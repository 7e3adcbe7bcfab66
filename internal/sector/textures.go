package sector

import (
	"sync"

	"github.com/Faultbox/sectorforge/pkg/mesh"
)

// TextureTable maps texture IDs to names. ID 0 is the default texture;
// mesh.SkyTexture has no name.
type TextureTable struct {
	mu     sync.RWMutex
	names  []string
	byName map[string]int
}

// NewTextureTable returns a table holding only the default texture.
func NewTextureTable(defaultName string) *TextureTable {
	return &TextureTable{
		names:  []string{defaultName},
		byName: map[string]int{defaultName: 0},
	}
}

// Name returns the name of texture id.
func (t *TextureTable) Name(id int) (string, bool) {
	if id == mesh.SkyTexture {
		return "", true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || id >= len(t.names) {
		return "", false
	}
	return t.names[id], true
}

// Ensure returns the ID of name, registering it under a fresh ID first if
// needed. The empty name is the sky.
func (t *TextureTable) Ensure(name string) int {
	if name == "" {
		return mesh.SkyTexture
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := len(t.names)
	t.names = append(t.names, name)
	t.byName[name] = id
	return id
}

// Len returns the number of named textures.
func (t *TextureTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}
