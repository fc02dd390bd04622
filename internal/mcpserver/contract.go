package mcpserver

// NoteFormatContract describes the note fields and conventions that LLM
// consumers should follow when creating or updating notes.
const NoteFormatContract = `# Scribe Note Format Contract

Notes live on the Scribe API. Each note has:

| Field        | Type     | Notes                                          |
|--------------|----------|------------------------------------------------|
| id           | UUID     | Assigned by the server. Use it for every call. |
| title        | string   | Plain text, single line. Defaults to Untitled. |
| content      | markdown | GitHub-flavoured markdown body.                |
| updated_at   | RFC 3339 | Set by the server on every write.              |

## Rules

1. **Do not put the title in the content.** The title is its own field; a
   leading ` + "`# heading`" + ` that repeats it is redundant.
2. **Partial updates.** ` + "`update_note`" + ` only changes the fields you pass.
   Send ` + "`content`" + ` alone to edit the body without touching the title.
3. **Tags** are written inline as ` + "`#tag`" + ` (letters, digits, ` + "`_`, `-`, `/`" + `).
4. **Links** to other notes use ` + "`[[Note title]]`" + ` or ` + "`[[Note title|alias]]`" + `.
5. **Raw HTML is not rendered** in previews. Use markdown constructs.

## Images

- Upload with the ` + "`upload_photo`" + ` tool (png, jpg, jpeg, gif, webp, max 5 MB).
- ` + "`list_photos`" + ` returns the public URL of every photo. Reference it as
  ` + "`![description](<url>)`" + `.

## Example

` + "```" + `markdown
Attendees: Alice, Bob. #meeting-notes #project-x

![Whiteboard](https://assets.example.com/standup.jpg)

## Action items

- Alice to review the [[Design doc]]
- Bob to update [[Roadmap|the roadmap]]
` + "```" + `
`
