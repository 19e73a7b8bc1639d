package server

import "html/template"

// indexTemplate is a full-window canvas that mirrors a session's scene.
// Lines are appended before circles so nodes stay on top. Dragging a node
// pins it where the pointer is and releases it on mouseup.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>forcegraph</title>
  <style>
    html, body { margin: 0; height: 100%; overflow: hidden; background: #fff; }
    svg { width: 100%; height: 100%; display: block; }
    line { stroke: #999; stroke-width: 1.5px; }
    circle { fill: #4285f4; stroke: #fff; stroke-width: 1.5px; cursor: move; }
    text { font: 10px sans-serif; pointer-events: none; }
  </style>
</head>
<body>
<svg id="canvas"></svg>
<script>
(function () {
  const id = {{.ID}};
  const base = "/api/graphs/" + encodeURIComponent(id);
  const ns = "http://www.w3.org/2000/svg";
  const svg = document.getElementById("canvas");
  let lines = [], circles = [], labels = [], dragging = null;

  function build(frame) {
    svg.setAttribute("viewBox", "0 0 " + frame.width + " " + frame.height);
    frame.lines.forEach(function () {
      const l = document.createElementNS(ns, "line");
      svg.appendChild(l);
      lines.push(l);
    });
    frame.circles.forEach(function (c) {
      const el = document.createElementNS(ns, "circle");
      el.setAttribute("r", c.r);
      el.addEventListener("mousedown", function (ev) { dragging = c.label; ev.preventDefault(); });
      const title = document.createElementNS(ns, "title");
      title.textContent = c.label;
      el.appendChild(title);
      svg.appendChild(el);
      circles.push(el);
      const t = document.createElementNS(ns, "text");
      t.textContent = c.label;
      svg.appendChild(t);
      labels.push(t);
    });
  }

  function apply(frame) {
    if (circles.length === 0) build(frame);
    frame.lines.forEach(function (l, i) {
      lines[i].setAttribute("x1", l.x1);
      lines[i].setAttribute("y1", l.y1);
      lines[i].setAttribute("x2", l.x2);
      lines[i].setAttribute("y2", l.y2);
    });
    frame.circles.forEach(function (c, i) {
      circles[i].setAttribute("cx", c.cx);
      circles[i].setAttribute("cy", c.cy);
      labels[i].setAttribute("x", c.cx + c.r + 2);
      labels[i].setAttribute("y", c.cy + 3);
    });
  }

  function toCanvas(ev) {
    const pt = svg.createSVGPoint();
    pt.x = ev.clientX;
    pt.y = ev.clientY;
    return pt.matrixTransform(svg.getScreenCTM().inverse());
  }

  function nodeURL(name) {
    return base + "/nodes/" + encodeURIComponent(name) + "/fix";
  }

  svg.addEventListener("mousemove", function (ev) {
    if (dragging === null) return;
    const p = toCanvas(ev);
    fetch(nodeURL(dragging), {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ x: p.x, y: p.y })
    });
  });

  window.addEventListener("mouseup", function () {
    if (dragging === null) return;
    fetch(nodeURL(dragging), { method: "DELETE" });
    dragging = null;
  });

  const source = new EventSource(base + "/stream");
  source.onmessage = function (ev) { apply(JSON.parse(ev.data)); };
})();
</script>
</body>
</html>
`))
