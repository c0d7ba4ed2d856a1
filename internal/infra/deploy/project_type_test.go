package deploy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		files    map[string]string
		wantType ProjectType
		wantPort int
	}{
		{"dockerfile wins", map[string]string{"Dockerfile": "FROM x", "requirements.txt": ""}, TypeDocker, 8080},
		{"django", map[string]string{"requirements.txt": "", "manage.py": ""}, TypeDjango, 8000},
		{"flask app.py", map[string]string{"requirements.txt": "", "app.py": ""}, TypeFlask, 5000},
		{"flask wsgi", map[string]string{"pyproject.toml": "", "wsgi.py": ""}, TypeFlask, 5000},
		{"plain python", map[string]string{"requirements.txt": ""}, TypePython, 8000},
		{"nextjs", map[string]string{"package.json": `{"scripts":{"dev":"next dev"}}`}, TypeNextJS, 3000},
		{"react", map[string]string{"package.json": `{"scripts":{"start":"react-scripts start"}}`}, TypeReact, 3000},
		{"vue", map[string]string{"package.json": `{"scripts":{"serve":"vue-cli-service serve"}}`}, TypeVue, 8080},
		{"plain node", map[string]string{"package.json": `{"scripts":{"start":"node index.js"}}`}, TypeNodeJS, 3000},
		{"broken package.json", map[string]string{"package.json": `{nope`}, TypeNodeJS, 3000},
		{"static", map[string]string{"index.html": "<html>"}, TypeStatic, 8080},
		{"php index", map[string]string{"index.php": "<?php"}, TypePHP, 80},
		{"php composer", map[string]string{"composer.json": "{}"}, TypePHP, 80},
		{"unknown", map[string]string{"README.md": "hi"}, TypeUnknown, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				write(t, dir, name, content)
			}
			pt, port := Classify(dir)
			assert.Equal(t, tc.wantType, pt)
			assert.Equal(t, tc.wantPort, port)
		})
	}
}

func TestDockerfileForUnknownTypes(t *testing.T) {
	assert.Empty(t, DockerfileFor(TypeUnknown))
	assert.Empty(t, DockerfileFor(TypeDocker))
	assert.Empty(t, DockerfileFor(TypePython))
	assert.NotEmpty(t, DockerfileFor(TypeFlask))
	assert.NotEmpty(t, DockerfileFor(TypeStatic))
}
