package mcpserver

// ProjectFormatContract describes the project document format that LLM
// consumers should follow when creating or importing projects.
const ProjectFormatContract = `# projectsync Project Format

Every project is stored as one Markdown document named ` + "`" + `<id>.md` + "`" + `.

## Structure

` + "```" + `markdown
---
id: 6f1c2a9e-3d7b-4a51-9c0e-2b8f4d6a1e37   # REQUIRED – stable identifier
name: Public API                            # REQUIRED – display name
order: 3                                    # OPTIONAL – position, lowest first
requests:                                   # OPTIONAL – IDs of saved requests
  - req-1
created: 2025-01-15T10:00:00Z               # OPTIONAL – RFC 3339
updated: 2025-01-20T08:30:00Z               # OPTIONAL – RFC 3339
---

Free-form description in Markdown.
` + "```" + `

## Rules

1. **Frontmatter is mandatory.** The ` + "`" + `---` + "`" + ` fences must open the file.
2. **` + "`" + `id` + "`" + `** must match the file name stem and may not contain path
   separators or start with a dot.
3. **` + "`" + `name` + "`" + `** is what autocomplete shows. When it is missing, the first
   ` + "`" + `# Heading` + "`" + ` of the body is used.
4. **` + "`" + `order` + "`" + `** sorts the list; equal values keep storage order.
5. The body becomes the project description.

## Selecting projects

Use ` + "`" + `resolve_projects` + "`" + ` with the entries a user picked. Entries equal to
an existing project ID come back under ` + "`" + `existing` + "`" + `; everything else comes
back under ` + "`" + `add` + "`" + ` and should be created with ` + "`" + `create_project` + "`" + `.
`
