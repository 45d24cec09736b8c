package pattern

// Predefined catalogs for common vulnerability classes. These can be
// registered directly or used as templates for custom catalogs.

// UserInputSources returns the source patterns shared by every catalog:
// request-shaped property accesses, environment reads, and file reads.
func UserInputSources() []Pattern {
	return []Pattern{
		{Signature: "req.query", Kind: Source, Category: "user-input"},
		{Signature: "req.body", Kind: Source, Category: "user-input"},
		{Signature: "req.params", Kind: Source, Category: "user-input"},
		{Signature: "req.cookies", Kind: Source, Category: "user-input"},
		{Signature: "req.headers", Kind: Source, Category: "user-input"},
		{Signature: "request.args", Kind: Source, Category: "user-input"},
		{Signature: "request.form", Kind: Source, Category: "user-input"},
		{Signature: "request.values", Kind: Source, Category: "user-input"},
		{Signature: "request.GET", Kind: Source, Category: "user-input"},
		{Signature: "request.POST", Kind: Source, Category: "user-input"},
		{Signature: "input", Kind: Source, Category: "user-input"},
		{Signature: "process.env", Kind: Source, Category: "environment"},
		{Signature: "os.environ", Kind: Source, Category: "environment"},
		{Signature: "os.getenv", Kind: Source, Category: "environment"},
		{Signature: "fs.readFile", Kind: Source, Category: "file-read"},
		{Signature: "fs.readFileSync", Kind: Source, Category: "file-read"},
		{Signature: "open", Kind: Source, Category: "file-read"},
	}
}

// SQLInjection returns a catalog for detecting SQL injection.
func SQLInjection() []Pattern {
	return append(UserInputSources(),
		Pattern{Signature: "db.execute", Kind: Sink, Category: "sql-injection"},
		Pattern{Signature: "db.query", Kind: Sink, Category: "sql-injection"},
		Pattern{Signature: "cursor.execute", Kind: Sink, Category: "sql-injection"},
		Pattern{Signature: "cursor.executemany", Kind: Sink, Category: "sql-injection"},
		Pattern{Signature: "connection.execute", Kind: Sink, Category: "sql-injection"},
		Pattern{Signature: "session.execute", Kind: Sink, Category: "sql-injection"},
		Pattern{Signature: "sequelize.query", Kind: Sink, Category: "sql-injection"},
		Pattern{Signature: "knex.raw", Kind: Sink, Category: "sql-injection"},
		Pattern{Signature: "escape", Kind: Sanitizer, Category: "sql-injection"},
		Pattern{Signature: "sqlstring.escape", Kind: Sanitizer, Category: "sql-injection"},
		Pattern{Signature: "pg.escapeLiteral", Kind: Sanitizer, Category: "sql-injection"},
	)
}

// CommandInjection returns a catalog for detecting OS command injection.
func CommandInjection() []Pattern {
	return append(UserInputSources(),
		Pattern{Signature: "child_process.exec", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "child_process.execSync", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "child_process.spawn", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "os.system", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "os.popen", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "subprocess.run", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "subprocess.call", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "subprocess.Popen", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "eval", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "exec", Kind: Sink, Category: "command-injection"},
		Pattern{Signature: "shlex.quote", Kind: Sanitizer, Category: "command-injection"},
		Pattern{Signature: "shellescape.quote", Kind: Sanitizer, Category: "command-injection"},
	)
}

// XSS returns a catalog for detecting cross-site scripting.
func XSS() []Pattern {
	return append(UserInputSources(),
		Pattern{Signature: "res.send", Kind: Sink, Category: "xss"},
		Pattern{Signature: "res.write", Kind: Sink, Category: "xss"},
		Pattern{Signature: "response.write", Kind: Sink, Category: "xss"},
		Pattern{Signature: "document.write", Kind: Sink, Category: "xss"},
		Pattern{Signature: "element.insertAdjacentHTML", Kind: Sink, Category: "xss"},
		Pattern{Signature: "html.escape", Kind: Sanitizer, Category: "xss"},
		Pattern{Signature: "markupsafe.escape", Kind: Sanitizer, Category: "xss"},
		Pattern{Signature: "DOMPurify.sanitize", Kind: Sanitizer, Category: "xss"},
		Pattern{Signature: "escapeHtml", Kind: Sanitizer, Category: "xss"},
	)
}

// PathTraversal returns a catalog for detecting path traversal on writes.
func PathTraversal() []Pattern {
	return append(UserInputSources(),
		Pattern{Signature: "fs.writeFile", Kind: Sink, Category: "path-traversal"},
		Pattern{Signature: "fs.writeFileSync", Kind: Sink, Category: "path-traversal"},
		Pattern{Signature: "fs.createWriteStream", Kind: Sink, Category: "path-traversal"},
		Pattern{Signature: "fs.unlink", Kind: Sink, Category: "path-traversal"},
		Pattern{Signature: "os.remove", Kind: Sink, Category: "path-traversal"},
		Pattern{Signature: "shutil.rmtree", Kind: Sink, Category: "path-traversal"},
		Pattern{Signature: "path.basename", Kind: Sanitizer, Category: "path-traversal"},
		Pattern{Signature: "os.path.basename", Kind: Sanitizer, Category: "path-traversal"},
		Pattern{Signature: "werkzeug.utils.secure_filename", Kind: Sanitizer, Category: "path-traversal"},
	)
}

// SSRF returns a catalog for detecting server-side request forgery.
func SSRF() []Pattern {
	return append(UserInputSources(),
		Pattern{Signature: "http.get", Kind: Sink, Category: "ssrf"},
		Pattern{Signature: "http.request", Kind: Sink, Category: "ssrf"},
		Pattern{Signature: "requests.get", Kind: Sink, Category: "ssrf"},
		Pattern{Signature: "requests.post", Kind: Sink, Category: "ssrf"},
		Pattern{Signature: "axios.get", Kind: Sink, Category: "ssrf"},
		Pattern{Signature: "axios.post", Kind: Sink, Category: "ssrf"},
		Pattern{Signature: "fetch", Kind: Sink, Category: "ssrf"},
		Pattern{Signature: "urllib.request.urlopen", Kind: Sink, Category: "ssrf"},
	)
}

// DefaultCatalog returns the union of all predefined catalogs. Source
// entries are shared between catalogs; the registry stores the duplicates
// harmlessly since discovery deduplicates by location.
func DefaultCatalog() []Pattern {
	var all []Pattern
	seen := make(map[string]struct{})
	for _, catalog := range [][]Pattern{SQLInjection(), CommandInjection(), XSS(), PathTraversal(), SSRF()} {
		for _, p := range catalog {
			key := p.Signature + "\x00" + p.Kind.String() + "\x00" + p.Category
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, p)
		}
	}
	return all
}
