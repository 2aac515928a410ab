package mcpserver

// CardFormatContract describes the card file and page metadata formats that
// LLM consumers should follow when creating cards.
const CardFormatContract = `# Rulebook Card Format Contract

The content directory holds one sub-directory per listing page
(` + "`rules/`, `channels/`, `roles/`" + `). Every card is one Markdown file
inside its page directory.

## Card file

` + "```" + `markdown
---
id: spam               # OPTIONAL - stable card id; defaults to number, then a UUID
number: "1.1"          # OPTIONAL - label shown on the card (quote it)
title: No spam         # RECOMMENDED - falls back to the first "# heading"
category: chat         # OPTIONAL - groups the card under a category title
tags: [chat, spam]     # OPTIONAL - filter tokens; a list or a space-separated string
order: 1               # OPTIONAL - position on the page, ascending
---
Do not flood channels. The body is Markdown and becomes the card description.
` + "```" + `

## Rules

1. **Paths** are ` + "`<page>/<name>.md`" + ` with forward slashes, lowercase names.
2. **Tags** are matched case-insensitively and as whole tokens. A card is shown
   under a filter button only if the button's token is one of its tags; the
   ` + "`all`" + ` button shows every card.
3. **Category** defaults to the first tag when omitted. Use a category that is
   listed in the page's ` + "`_page.yaml`" + `, otherwise it is shown with a
   generated title.
4. **Search** matches the card title and description text, so write the
   important words in them, not only in tags.
5. Inline hashtags in the body (` + "`#voice`" + `) are added to the tags.
6. Encoding is UTF-8 with a trailing newline.
7. Raw HTML in the body is not rendered. Use Markdown for emphasis, links,
   lists and images.

## Page metadata (` + "`_page.yaml`" + `)

` + "```" + `yaml
kind: rules
title: Server rules
intro: Read before posting.
search_placeholder: Search rules...
filters:
  - token: all
    label: All
  - token: chat
    label: Chat
categories:
  - id: chat
    title: Text chat
    icon: fa-comments
` + "```" + `

The ` + "`all`" + ` filter should always be present and listed first.

## Assets

- Upload images with the ` + "`upload_asset`" + ` tool; it returns ready-to-paste Markdown in ` + "`markup`" + `.
- Assets live flat in ` + "`assets/`" + ` and are served from ` + "`/api/assets/<name>`" + `.
- Supported formats: png, jpg, jpeg, gif, webp, svg.
`
