package render

// documentShellPrefix and documentShellSuffix wrap a merged template
// fragment in the fixed document frame the rasterizer expects. The styles
// mirror the printable voucher layout used by the sales team.
const documentShellPrefix = `<!doctype html><html lang="pt-BR"><head><meta charset="utf-8" />
<meta name="viewport" content="width=device-width, initial-scale=1" />
<style>
  html, body { height: 100%; }
  body { font-family: Arial, sans-serif; color: #0f172a; min-height: 100vh; display: flex; flex-direction: column; }
  .header { display: flex; align-items: center; gap: 12px; margin-bottom: 8px; }
  .title { font-size: 18px; font-weight: 700; }
  .muted { color: #64748b; font-size: 12px; }
  .section { margin-bottom: 16px; }
  table { width: 100%; border-collapse: collapse; }
  td, th { border: 1px solid #e2e8f0; padding: 8px; vertical-align: top; }
  .text-right { text-align: right; }
  .text-center { text-align: center; }
  .section.text-center.muted { position: fixed; bottom: 16px; left: 0; right: 0; }
</style>
</head><body>`

const documentShellSuffix = `</body></html>`

// WrapDocument embeds a merged fragment in the full HTML document shell.
func WrapDocument(fragment string) string {
	return documentShellPrefix + fragment + documentShellSuffix
}
