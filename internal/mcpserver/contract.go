package mcpserver

// NoteFormatContract describes the canonical naming scheme and note format
// that LLM consumers should follow when creating or linking notes.
const NoteFormatContract = `# Gebo Note Format Contract

Every note in a Gebo vault is addressed by the identifier embedded in its
filename. Links point at identifiers, never at paths, so notes survive
renames and merges.

## Filenames

` + "```" + `
20240131T094500--weekly-review__project_meeting.org
\______________/  \___________/  \_____________/\__/
   identifier      title slug     tags (opt.)   ext
` + "```" + `

1. **Identifier** is a timestamp of the form ` + "`" + `YYYYMMDDTHHMMSS` + "`" + ` and MUST
   lead the filename. It is unique within the vault; never reuse one.
2. ` + "`" + `--` + "`" + ` separates the identifier from the kebab-case title slug.
3. ` + "`" + `__` + "`" + ` introduces the optional tag block; tags are joined with ` + "`" + `_` + "`" + `
   and are lowercase.
4. The extension selects the flavor: ` + "`" + `.org` + "`" + `, ` + "`" + `.md` + "`" + `, or ` + "`" + `.txt` + "`" + `.

## In-file titles

- Org: a ` + "`" + `#+title: Weekly review` + "`" + ` keyword at the top of the file.
- Markdown: YAML frontmatter with a ` + "`" + `title:` + "`" + ` field.
- Plain text: no in-file title; the filename slug is the title.

## Links

- Org and plain text: ` + "`" + `[[note:20240131T094500][Weekly review]]` + "`" + `, or the
  bare form ` + "`" + `[[note:20240131T094500]]` + "`" + ` when no description is wanted.
- Markdown: ` + "`" + `[Weekly review](note:20240131T094500)` + "`" + `.
- The target is always the identifier. Never link by filename.

## Rules

1. **Encoding** is UTF-8 with a trailing newline.
2. **File names** use English (Latin) characters; titles and body content
   may use any language.
3. **Merging**: prefer the merge_notes and merge_region tools over manual
   copy-and-delete. The tools retarget every backlink in the vault; manual
   edits leave dangling identifiers behind.

## Example

` + "```" + `org
#+title: Weekly standup 2024-01-20

Attendees: Alice, Bob.

Decisions carried over from [[note:20240113T101500][last week]].

* Action items

- Alice to review the [[note:20240105T083000][design doc]]
- Bob to update the roadmap
` + "```" + `
`
