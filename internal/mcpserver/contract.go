package mcpserver

// NoteConventions describes the Markdown conventions LifeOS indexes in daily
// notes, for LLM consumers that write notes.
const NoteConventions = `# LifeOS Daily Note Conventions

There is one note per day, keyed by its date (YYYY-MM-DD). Saving a note
replaces the whole text for that day.

## Structure

` + "```" + `markdown
---
title: A slow Saturday     # OPTIONAL – overrides the derived title
tags: [rest, family]       # OPTIONAL – merged with inline #tags
---

# Morning pages

Free text. Reference other days with [[2026-03-13]].
Tag moments inline with #gratitude or #health/sleep.
` + "```" + `

## Rules

1. **Frontmatter is optional.** When present, the ` + "```" + `---` + "```" + ` fences must open the note.
   Invalid YAML makes the whole text body.
2. **Title** comes from frontmatter ` + "`" + `title` + "`" + `, else the first heading, else the
   first non-empty line, truncated to 80 characters.
3. **Day links** use double brackets around a date: ` + "`" + `[[YYYY-MM-DD]]` + "`" + `. The linked day
   lists this note among its backlinks. A ` + "`" + `[[date|label]]` + "`" + ` form links to ` + "`" + `date` + "`" + `.
4. **Tags** start with a letter after ` + "`" + `#` + "`" + ` and may contain letters, digits, ` + "`" + `_` + "`" + `, ` + "`" + `-` + "`" + ` and ` + "`" + `/` + "`" + `.
5. **Encoding** is UTF-8. Content may use any language.

## Photos

- Attach a photo with the ` + "`" + `attach_photo` + "`" + ` tool. A day has at most one photo; attaching
  another replaces it.
- Supported formats: png, jpg, jpeg, gif, webp, svg.
- Do not embed image links in the note text; the photo is stored on the note itself.
`
