package plugins

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type TestSuite struct {
	TestPluginLib string
	PluginDir     string
	OldPluginDir  string
}

var _ = Suite(&TestSuite{})

func (s *TestSuite) SetUpSuite(c *C) {
	if runtime.GOOS != "linux" {
		c.Skip("Only linux runs plugins")
	}
	dirName := c.MkDir()
	s.PluginDir = filepath.Join(dirName, "formats")
	os.MkdirAll(s.PluginDir, 0o777)
	testFilePath := filepath.Join(dirName, "plugin.go")
	s.TestPluginLib = "format.so"
	soFilePath := filepath.Join(s.PluginDir, s.TestPluginLib)
	code := `package main

func NewFileFactory(config map[string]interface{}) (interface{}, error) { return nil, nil }

func main() {}
`
	if err := os.WriteFile(testFilePath, []byte(code), 0o644); err != nil {
		c.Fatal("Could not create test plugin source file")
	}
	cmd := exec.Command("go", "build", "-buildmode=plugin", "-o", soFilePath, testFilePath)
	if err := cmd.Run(); err != nil {
		fmt.Println(err)
		c.Skip("Unable to build test plugin")
	}

	s.OldPluginDir = os.Getenv(PluginDirEnv)
	os.Setenv(PluginDirEnv, "/nonexistent:"+s.PluginDir)
}

func (s *TestSuite) TearDownSuite(c *C) {
	os.Setenv(PluginDirEnv, s.OldPluginDir)
}

func (s *TestSuite) TestLoadFromPluginDir(c *C) {
	pi, err := Load(s.TestPluginLib)
	c.Check(pi, NotNil)
	c.Check(err, IsNil)
}

func (s *TestSuite) TestLoadAbsolutePath(c *C) {
	loader, err := NewSymbolLoader(filepath.Join(s.PluginDir, s.TestPluginLib))
	c.Assert(err, IsNil)
	sym, err := loader.LoadSymbol("NewFileFactory")
	c.Check(err, IsNil)
	c.Check(sym, NotNil)
	_, err = loader.LoadSymbol("Missing")
	c.Check(err, NotNil)
}

func (s *TestSuite) TestLoadMissing(c *C) {
	_, err := Load("missing.so")
	c.Check(err, ErrorMatches, "(?s)module missing.so not found.*")
}

func (s *TestSuite) TestSearchPaths(c *C) {
	paths := searchPaths("x.so")
	c.Check(paths[0], Equals, "/nonexistent/x.so")
	c.Check(paths[1], Equals, filepath.Join(s.PluginDir, "x.so"))
	c.Check(paths[len(paths)-1], Equals, "x.so")
}
