package runbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRunbook(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "runbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParseSubstitutesEnvironmentReferences(t *testing.T) {
	t.Setenv("ORCH_TEST_BUCKET", "compliance-evidence")

	path := writeRunbook(t, `
name: env-sub
artifacts:
  raw:
    source:
      type: s3
      properties:
        bucket: ${ORCH_TEST_BUCKET}
`)

	rb, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "compliance-evidence", rb.Artifacts["raw"].Source.Properties["bucket"])
}

func TestParseFailsOnUndefinedEnvironmentReference(t *testing.T) {
	path := writeRunbook(t, `
name: env-missing
artifacts:
  raw:
    source:
      type: s3
      properties:
        bucket: ${ORCH_TEST_DEFINITELY_UNSET}
`)

	_, err := Parse(path)
	require.Error(t, err)
}

func TestParseRejectsDuplicateArtifactIDs(t *testing.T) {
	path := writeRunbook(t, `
name: dupes
artifacts:
  raw:
    source:
      type: s3
  raw:
    source:
      type: gcs
`)

	_, err := Parse(path)
	require.Error(t, err)
}

func TestParseRejectsInvalidArtifactID(t *testing.T) {
	path := writeRunbook(t, `
name: bad-id
artifacts:
  "has space":
    source:
      type: s3
`)

	_, err := Parse(path)
	require.Error(t, err)
}

func TestParsePreservesDeclarationOrder(t *testing.T) {
	path := writeRunbook(t, `
name: ordered
artifacts:
  zeta:
    source:
      type: s3
  alpha:
    inputs: zeta
    transform:
      type: noop
`)

	rb, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, rb.ArtifactOrder)
}

func TestValidateRejectsArtifactWithBothSourceAndInputs(t *testing.T) {
	rb := &Runbook{
		Name: "bad",
		Artifacts: map[string]*ArtifactDefinition{
			"x": {ID: "x", Source: &SourceSpec{Type: "s3"}, Inputs: []string{"y"}},
		},
	}
	assert.Error(t, rb.Validate())
}

func TestValidateRejectsArtifactWithNeitherSourceNorInputs(t *testing.T) {
	rb := &Runbook{
		Name: "bad",
		Artifacts: map[string]*ArtifactDefinition{
			"x": {ID: "x"},
		},
	}
	assert.Error(t, rb.Validate())
}
