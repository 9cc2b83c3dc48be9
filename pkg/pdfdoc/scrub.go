package pdfdoc

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/gardar/redactor/pkg/layout"
)

// scrubText removes the glyphs covered by each page's applied regions from
// the page content streams of data and returns the rewritten PDF. Text in
// form XObjects and annotations is not touched.
func scrubText(data []byte, pages []*pdfPage, log *slog.Logger) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	ctx, err := api.ReadAndValidate(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	changed := false
	for _, page := range pages {
		regions := page.regions()
		if len(regions) == 0 {
			continue
		}
		rects := make([]layout.Rect, len(regions))
		for i, r := range regions {
			// Layout space has its origin at the top left.
			rects[i] = layout.Rect{X0: r.Rect.X0, Y0: page.h - r.Rect.Y1, X1: r.Rect.X1, Y1: page.h - r.Rect.Y0}
		}

		removed, err := scrubPage(ctx, page.num, rects)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.num, err)
		}
		log.Debug("removed covered text", "page", page.num, "glyphs", removed)
		changed = changed || removed > 0
	}
	if !changed {
		return data, nil
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// scrubPage replaces the content of page num with a scrubbed copy.
func scrubPage(ctx *model.Context, num int, rects []layout.Rect) (int, error) {
	pageDict, _, inh, err := ctx.PageDict(num, false)
	if err != nil {
		return 0, err
	}
	content, err := ctx.PageContent(pageDict)
	if err != nil {
		return 0, fmt.Errorf("failed to read content: %w", err)
	}
	if len(content) == 0 {
		return 0, nil
	}

	var res types.Dict
	if inh != nil {
		res = inh.Resources
	}
	scrubbed, removed, err := scrubContent(content, pageFonts(ctx, res), rects)
	if err != nil {
		return 0, fmt.Errorf("failed to parse content: %w", err)
	}
	if removed == 0 {
		return 0, nil
	}

	sd, err := ctx.NewStreamDictForBuf(scrubbed)
	if err != nil {
		return 0, err
	}
	if err := sd.Encode(); err != nil {
		return 0, err
	}
	ir, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return 0, err
	}
	pageDict["Contents"] = *ir
	return removed, nil
}

// pageFonts returns the metrics of the fonts in a resource dict by
// resource name.
func pageFonts(ctx *model.Context, res types.Dict) map[string]*fontMetrics {
	fonts := make(map[string]*fontMetrics)
	if res == nil {
		return fonts
	}
	o, found := res.Find("Font")
	if !found {
		return fonts
	}
	d, err := ctx.DereferenceDict(o)
	if err != nil || d == nil {
		return fonts
	}
	for name, o := range d {
		fd, err := ctx.DereferenceDict(o)
		if err != nil || fd == nil {
			continue
		}
		fonts[name] = fontFromDict(ctx, fd)
	}
	return fonts
}

func fontFromDict(ctx *model.Context, fd types.Dict) *fontMetrics {
	f := &fontMetrics{widths: make(map[int]float64), missing: avgGlyphRatio * 1000}
	if st := fd.NameEntry("Subtype"); st != nil && *st == "Type0" {
		f.twoByte = true
		cidFontWidths(ctx, fd, f)
		return f
	}

	var first int
	if o, found := fd.Find("FirstChar"); found {
		if n, err := ctx.DereferenceNumber(o); err == nil {
			first = int(n)
		}
	}
	if o, found := fd.Find("Widths"); found {
		if ws, err := ctx.DereferenceArray(o); err == nil && len(ws) > 0 {
			for i, w := range ws {
				if n, err := ctx.DereferenceNumber(w); err == nil {
					f.widths[first+i] = n
				}
			}
			if desc, err := ctx.DereferenceDict(fd["FontDescriptor"]); err == nil && desc != nil {
				if n, err := ctx.DereferenceNumber(desc["MissingWidth"]); err == nil {
					f.missing = n
				}
			}
			return f
		}
	}

	if base := fd.NameEntry("BaseFont"); base != nil {
		if t, ok := coreWidths(*base); ok {
			for c, w := range t {
				if w > 0 {
					f.widths[c] = w
				}
			}
		}
	}
	return f
}

// cidFontWidths reads the /W array of the descendant font of a Type0 font.
func cidFontWidths(ctx *model.Context, fd types.Dict, f *fontMetrics) {
	f.missing = 1000
	desc, err := ctx.DereferenceArray(fd["DescendantFonts"])
	if err != nil || len(desc) == 0 {
		return
	}
	cid, err := ctx.DereferenceDict(desc[0])
	if err != nil || cid == nil {
		return
	}
	if n, err := ctx.DereferenceNumber(cid["DW"]); err == nil {
		f.missing = n
	}
	w, err := ctx.DereferenceArray(cid["W"])
	if err != nil {
		return
	}
	for i := 0; i+1 < len(w); {
		c0, err := ctx.DereferenceNumber(w[i])
		if err != nil {
			return
		}
		if ws, err := ctx.DereferenceArray(w[i+1]); err == nil {
			for j, o := range ws {
				if n, err := ctx.DereferenceNumber(o); err == nil {
					f.widths[int(c0)+j] = n
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			return
		}
		c1, err1 := ctx.DereferenceNumber(w[i+1])
		n, err2 := ctx.DereferenceNumber(w[i+2])
		if err1 != nil || err2 != nil {
			return
		}
		for c := int(c0); c <= int(c1); c++ {
			f.widths[c] = n
		}
		i += 3
	}
}
