package taint

import "strings"

type Category string

const (
	CategorySQLInjection      Category = "sql-injection"
	CategoryCommandInjection  Category = "command-injection"
	CategoryCodeInjection     Category = "code-injection"
	CategoryDeserialization   Category = "unsafe-deserialization"
	CategoryPathTraversal     Category = "path-traversal"
	CategoryTemplateInjection Category = "template-injection"
	CategorySSRF              Category = "server-side-request-forgery"
	CategoryLogInjection      Category = "log-injection"
)

// SourceSpec matches calls that introduce externally controlled data.
// Patterns are exact dotted names, "*.name" method suffixes, or
// "prefix.*" attribute namespaces.
type SourceSpec struct {
	Pattern  string
	Category string
}

// SinkSpec matches calls that are dangerous when fed untrusted input.
type SinkSpec struct {
	Pattern  string
	Category Category
	CWE      string
}

type Catalog struct {
	sources []SourceSpec
	sinks   []SinkSpec
}

func NewCatalog(sources []SourceSpec, sinks []SinkSpec) *Catalog {
	return &Catalog{sources: sources, sinks: sinks}
}

func DefaultCatalog() *Catalog {
	return NewCatalog(defaultSources, defaultSinks)
}

var defaultSources = []SourceSpec{
	{Pattern: "input", Category: "user-input"},
	{Pattern: "raw_input", Category: "user-input"},
	{Pattern: "sys.stdin.*", Category: "user-input"},
	{Pattern: "os.getenv", Category: "environment"},
	{Pattern: "os.environ.get", Category: "environment"},
	{Pattern: "request.*", Category: "http-request"},
	{Pattern: "flask.request.*", Category: "http-request"},
	{Pattern: "*.recv", Category: "network"},
	{Pattern: "*.recvfrom", Category: "network"},
	{Pattern: "*.readline", Category: "file-input"},
}

var defaultSinks = []SinkSpec{
	{Pattern: "*.execute", Category: CategorySQLInjection, CWE: "CWE-89"},
	{Pattern: "*.executemany", Category: CategorySQLInjection, CWE: "CWE-89"},
	{Pattern: "*.executescript", Category: CategorySQLInjection, CWE: "CWE-89"},

	{Pattern: "os.system", Category: CategoryCommandInjection, CWE: "CWE-78"},
	{Pattern: "os.popen", Category: CategoryCommandInjection, CWE: "CWE-78"},
	{Pattern: "subprocess.run", Category: CategoryCommandInjection, CWE: "CWE-78"},
	{Pattern: "subprocess.call", Category: CategoryCommandInjection, CWE: "CWE-78"},
	{Pattern: "subprocess.check_call", Category: CategoryCommandInjection, CWE: "CWE-78"},
	{Pattern: "subprocess.check_output", Category: CategoryCommandInjection, CWE: "CWE-78"},
	{Pattern: "subprocess.Popen", Category: CategoryCommandInjection, CWE: "CWE-78"},
	{Pattern: "subprocess.getoutput", Category: CategoryCommandInjection, CWE: "CWE-78"},

	{Pattern: "eval", Category: CategoryCodeInjection, CWE: "CWE-94"},
	{Pattern: "exec", Category: CategoryCodeInjection, CWE: "CWE-94"},
	{Pattern: "compile", Category: CategoryCodeInjection, CWE: "CWE-94"},

	{Pattern: "pickle.load", Category: CategoryDeserialization, CWE: "CWE-502"},
	{Pattern: "pickle.loads", Category: CategoryDeserialization, CWE: "CWE-502"},
	{Pattern: "marshal.load", Category: CategoryDeserialization, CWE: "CWE-502"},
	{Pattern: "marshal.loads", Category: CategoryDeserialization, CWE: "CWE-502"},
	{Pattern: "yaml.load", Category: CategoryDeserialization, CWE: "CWE-502"},
	{Pattern: "shelve.open", Category: CategoryDeserialization, CWE: "CWE-502"},

	{Pattern: "open", Category: CategoryPathTraversal, CWE: "CWE-22"},
	{Pattern: "os.remove", Category: CategoryPathTraversal, CWE: "CWE-22"},
	{Pattern: "os.unlink", Category: CategoryPathTraversal, CWE: "CWE-22"},
	{Pattern: "os.rmdir", Category: CategoryPathTraversal, CWE: "CWE-22"},
	{Pattern: "shutil.rmtree", Category: CategoryPathTraversal, CWE: "CWE-22"},

	{Pattern: "render_template_string", Category: CategoryTemplateInjection, CWE: "CWE-1336"},
	{Pattern: "flask.render_template_string", Category: CategoryTemplateInjection, CWE: "CWE-1336"},
	{Pattern: "jinja2.Template", Category: CategoryTemplateInjection, CWE: "CWE-1336"},

	{Pattern: "requests.get", Category: CategorySSRF, CWE: "CWE-918"},
	{Pattern: "requests.post", Category: CategorySSRF, CWE: "CWE-918"},
	{Pattern: "urllib.request.urlopen", Category: CategorySSRF, CWE: "CWE-918"},

	{Pattern: "logging.debug", Category: CategoryLogInjection, CWE: "CWE-117"},
	{Pattern: "logging.info", Category: CategoryLogInjection, CWE: "CWE-117"},
	{Pattern: "logging.warning", Category: CategoryLogInjection, CWE: "CWE-117"},
	{Pattern: "logging.error", Category: CategoryLogInjection, CWE: "CWE-117"},
}

func (c *Catalog) MatchSource(callee string) (SourceSpec, bool) {
	for _, s := range c.sources {
		if matchPattern(s.Pattern, callee) {
			return s, true
		}
	}
	return SourceSpec{}, false
}

func (c *Catalog) MatchSink(callee string) (SinkSpec, bool) {
	for _, s := range c.sinks {
		if matchPattern(s.Pattern, callee) {
			return s, true
		}
	}
	return SinkSpec{}, false
}

func matchPattern(pattern, callee string) bool {
	switch {
	case strings.HasPrefix(pattern, "*."):
		suffix := pattern[1:] // ".execute"
		return strings.HasSuffix(callee, suffix)
	case strings.HasSuffix(pattern, ".*"):
		prefix := pattern[:len(pattern)-1] // "request."
		return strings.HasPrefix(callee, prefix)
	default:
		return callee == pattern
	}
}
