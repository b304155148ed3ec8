package mcpserver

// DocumentFormatContract describes the on-disk document formats so LLM
// consumers can interpret load_week output.
const DocumentFormatContract = `# Calendle Document Format

The data directory is flat. Each file is a JSON document indented with two
spaces. A file named like ` + "`2024-33`" + ` (ISO week-year, dash, ISO week number,
no zero padding) is a week document; any other name is a list document.

## Week document

An array of seven day entries, Monday first:

` + "```" + `json
[
  {
    "name": "Monday",
    "date": "2024-08-12",
    "bullets": [
      { "id": "3f2c9a0b7d4e4b1fa6c1d2e3f4a5b6c7", "style": "todo", "text": "", "indent": 0 }
    ]
  }
]
` + "```" + `

## List document

An undated backlog. ` + "`date`" + ` is always null.

` + "```" + `json
{ "name": "someday", "date": null, "bullets": [ ... ] }
` + "```" + `

## Bullets

- ` + "`id`" + `: 32 lowercase hex digits, unique.
- ` + "`style`" + `: opaque to the backend; new bullets use ` + "`todo`" + `.
- ` + "`indent`" + `: non-negative nesting depth. Old files may store booleans;
  they read as 1 (true) and 0 (false).

## Merged payload

load_week returns the seven days followed by the list document as a single
eight-element array.
`
