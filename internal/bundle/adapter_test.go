package bundle

import (
	"testing"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func technique(id, name string, legacySources ...string) Object {
	obj := Object{"type": typeAttackPattern, "id": id, "name": name}
	if len(legacySources) > 0 {
		raw := make([]interface{}, len(legacySources))
		for i, s := range legacySources {
			raw[i] = s
		}
		obj[attrLegacyDataSources] = raw
	}
	return obj
}

func TestCanonicalize(t *testing.T) {
	t.Run("current bundle passes through untouched", func(t *testing.T) {
		objects := []Object{
			technique("attack-pattern--a", "Dumping"),
			{"type": typeDataSource, "id": "x-mitre-data-source--p", "name": "Process"},
		}

		canonical, mode, synthesized := Canonicalize(objects, zap.NewNop())
		assert.Equal(t, schemas.SchemaModeCurrent, mode)
		assert.Zero(t, synthesized)
		assert.Len(t, canonical, 2)
	})

	t.Run("legacy bundle synthesizes source, component, and detects edge", func(t *testing.T) {
		objects := []Object{
			technique("attack-pattern--a", "Dumping", "Process Monitoring"),
		}

		canonical, mode, synthesized := Canonicalize(objects, zap.NewNop())
		assert.Equal(t, schemas.SchemaModeLegacy, mode)
		assert.Equal(t, 3, synthesized)
		require.Len(t, canonical, 4)

		source := findByType(canonical, typeDataSource)
		require.NotNil(t, source)
		assert.Equal(t, "Process Monitoring", source.Str("name"))
		assert.True(t, source.Bool("x_mitre_synthesized"))

		component := findByType(canonical, typeDataComponent)
		require.NotNil(t, component)
		assert.Equal(t, source.ID(), component.Str(attrDataSourceRef))

		rel := findByType(canonical, typeRelationship)
		require.NotNil(t, rel)
		assert.Equal(t, "detects", rel.Str("relationship_type"))
		assert.Equal(t, component.ID(), rel.Str("source_ref"))
		assert.Equal(t, "attack-pattern--a", rel.Str("target_ref"))
	})

	t.Run("same legacy name across techniques shares one source", func(t *testing.T) {
		objects := []Object{
			technique("attack-pattern--a", "A", "Process Monitoring"),
			technique("attack-pattern--b", "B", "process monitoring"),
		}

		canonical, _, synthesized := Canonicalize(objects, zap.NewNop())
		// One source, one component, two detects edges.
		assert.Equal(t, 4, synthesized)
		assert.Len(t, collectByType(canonical, typeDataSource), 1)
		assert.Len(t, collectByType(canonical, typeDataComponent), 1)
		assert.Len(t, collectByType(canonical, typeRelationship), 2)
	})

	t.Run("existing data source is reused, not shadowed", func(t *testing.T) {
		objects := []Object{
			{"type": typeDataSource, "id": "x-mitre-data-source--p", "name": "Process"},
			technique("attack-pattern--a", "A", "Process"),
		}

		canonical, _, _ := Canonicalize(objects, zap.NewNop())
		sources := collectByType(canonical, typeDataSource)
		require.Len(t, sources, 1)
		assert.Equal(t, "x-mitre-data-source--p", sources[0].ID())

		component := findByType(canonical, typeDataComponent)
		require.NotNil(t, component)
		assert.Equal(t, "x-mitre-data-source--p", component.Str(attrDataSourceRef))
	})

	t.Run("distinct names with colliding slugs keep distinct ids", func(t *testing.T) {
		// "a b" and "a  b" fold differently but both slug to "a-b".
		objects := []Object{
			technique("attack-pattern--a", "A", "a b", "a  b"),
		}

		canonical, _, _ := Canonicalize(objects, zap.NewNop())
		sources := collectByType(canonical, typeDataSource)
		require.Len(t, sources, 2)
		assert.NotEqual(t, sources[0].ID(), sources[1].ID())

		components := collectByType(canonical, typeDataComponent)
		require.Len(t, components, 2)
		assert.NotEqual(t, components[0].ID(), components[1].ID())
	})

	t.Run("blank legacy names are ignored", func(t *testing.T) {
		objects := []Object{
			technique("attack-pattern--a", "A", "  ", "Process"),
		}
		_, _, synthesized := Canonicalize(objects, zap.NewNop())
		assert.Equal(t, 3, synthesized)
	})
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "process-monitoring", slug("Process Monitoring"))
	assert.Equal(t, "windows-registry", slug("  Windows / Registry  "))
	assert.Equal(t, "dll-cli", slug("DLL&CLI"))
}

func findByType(objects []Object, recordType string) Object {
	for _, obj := range objects {
		if obj.Type() == recordType {
			return obj
		}
	}
	return nil
}

func collectByType(objects []Object, recordType string) []Object {
	var out []Object
	for _, obj := range objects {
		if obj.Type() == recordType {
			out = append(out, obj)
		}
	}
	return out
}
