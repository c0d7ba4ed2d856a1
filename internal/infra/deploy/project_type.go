package deploy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ProjectType enum
type ProjectType string

const (
	TypeDocker  ProjectType = "docker"
	TypeDjango  ProjectType = "django"
	TypeFlask   ProjectType = "flask"
	TypePython  ProjectType = "python"
	TypeNextJS  ProjectType = "nextjs"
	TypeReact   ProjectType = "react"
	TypeVue     ProjectType = "vue"
	TypeNodeJS  ProjectType = "nodejs"
	TypeStatic  ProjectType = "static"
	TypePHP     ProjectType = "php"
	TypeUnknown ProjectType = "unknown"
)

// Classify infers the runtime stack and its conventional port from the
// files in a cloned repository. An existing Dockerfile wins outright; an
// unknown stack disables the container tier.
func Classify(repoPath string) (ProjectType, int) {
	if fileExists(repoPath, "Dockerfile") {
		return TypeDocker, 8080
	}

	if fileExists(repoPath, "requirements.txt") || fileExists(repoPath, "pyproject.toml") {
		if fileExists(repoPath, "manage.py") {
			return TypeDjango, 8000
		}
		if fileExists(repoPath, "app.py") || fileExists(repoPath, "wsgi.py") {
			return TypeFlask, 5000
		}
		return TypePython, 8000
	}

	if fileExists(repoPath, "package.json") {
		return classifyNode(repoPath)
	}

	if fileExists(repoPath, "index.html") {
		return TypeStatic, 8080
	}

	if fileExists(repoPath, "index.php") || fileExists(repoPath, "composer.json") {
		return TypePHP, 80
	}

	return TypeUnknown, 0
}

// classifyNode inspects package.json run scripts for framework signatures.
func classifyNode(repoPath string) (ProjectType, int) {
	data, err := os.ReadFile(filepath.Join(repoPath, "package.json"))
	if err != nil {
		return TypeNodeJS, 3000
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return TypeNodeJS, 3000
	}

	switch {
	case strings.Contains(pkg.Scripts["dev"], "next"):
		return TypeNextJS, 3000
	case strings.Contains(pkg.Scripts["start"], "react-scripts"):
		return TypeReact, 3000
	case strings.Contains(pkg.Scripts["serve"], "vue-cli-service"):
		return TypeVue, 8080
	}
	return TypeNodeJS, 3000
}

func fileExists(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
