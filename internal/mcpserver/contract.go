package mcpserver

// PageFormat describes the Markdown conventions the wiki understands, for
// LLM consumers writing pages.
const PageFormat = `# Markbase Page Format

Pages are plain Markdown files ending in ` + "`" + `.md` + "`" + `. A page is addressed by its
path without the extension, e.g. ` + "`" + `guides/setup` + "`" + ` for ` + "`" + `guides/setup.md` + "`" + `.

## Folders

- A folder's own page is its ` + "`" + `README.md` + "`" + `.
- Folders without one are listed automatically; opening one in the editor
  generates an index page with links to everything inside.

## Links

- Wiki links: ` + "`" + `[[setup]]` + "`" + ` finds the page by file name anywhere in the wiki.
  If several pages share the name, the link leads to a list to pick from.
- Use a path to be explicit: ` + "`" + `[[guides/setup]]` + "`" + `.
- Use ` + "`" + `[[target|label]]` + "`" + ` for display text that differs from the target.
- Regular Markdown links are relative to the folder holding the page:
  ` + "`" + `[next](setup.md)` + "`" + `, ` + "`" + `[up](../README.md)` + "`" + `. A leading ` + "`" + `/` + "`" + ` starts at the wiki root.
- Links to pages that do not exist yet open the editor for them.

## Images

- Upload with the ` + "`" + `upload_image` + "`" + ` tool; it returns a ready Markdown reference.
- Image paths are relative to the image root: ` + "`" + `![diagram](shots/diagram.png)` + "`" + `.
  Paths that climb above the image root with ` + "`" + `..` + "`" + ` are dropped.

## Rules

1. The first ` + "`" + `# heading` + "`" + ` is the page title in search results; the path is used otherwise.
2. Raw HTML is shown as text, not rendered.
3. Encoding is UTF-8.
`
