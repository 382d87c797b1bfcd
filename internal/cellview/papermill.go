package cellview

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/nbview/internal/notebook"
)

// BannerText is shown while Papermill is executing a cell.
const BannerText = "Executing with Papermill..."

// BannerProps is the input of PapermillBanner.
type BannerProps struct {
	Status notebook.PapermillStatus
	Width  int
}

var bannerStyle = lipgloss.NewStyle().
	Background(lipgloss.Color("#e8f2ff")).
	Foreground(lipgloss.Color("#1E1E2E")).
	PaddingLeft(1).
	PaddingTop(1).
	PaddingBottom(1)

// BannerPropsFromMetadata maps a cell's Papermill record to banner props.
// A nil record yields an empty status.
func BannerPropsFromMetadata(meta *notebook.PapermillMetadata, width int) BannerProps {
	p := BannerProps{Width: width}
	if meta != nil {
		p.Status = meta.Status
	}
	return p
}

// PapermillBanner renders the execution banner for a running cell and
// nothing for any other status.
func PapermillBanner(p BannerProps) string {
	if p.Status != notebook.StatusRunning {
		return ""
	}
	style := bannerStyle
	if p.Width > 0 {
		style = style.Width(p.Width)
	}
	return style.Render(BannerText)
}
