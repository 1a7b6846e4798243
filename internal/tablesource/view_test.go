package tablesource

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/relcore/internal/dbtype"
)

func TestViewDefinitionGetMutableTableRejectsNonUpdatable(t *testing.T) {
	v := &ViewDefinition{Name: dbtype.NewObjectName("public", "active_accounts")}
	err := v.GetMutableTable()
	require.Error(t, err)
	var notUpdatable *ErrViewNotUpdatable
	require.ErrorAs(t, err, &notUpdatable)
	require.Equal(t, v.Name, notUpdatable.Name)
}

func TestViewDefinitionGetMutableTableAllowsUpdatable(t *testing.T) {
	v := &ViewDefinition{Name: dbtype.NewObjectName("public", "active_accounts"), Updatable: true}
	require.NoError(t, v.GetMutableTable())
}
